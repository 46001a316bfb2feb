package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ironwatch/site/internal/cache"
	"github.com/ironwatch/site/internal/mail"
	"github.com/ironwatch/site/internal/storage"
)

// Dispatcher commands handled by the manager.
const (
	CmdPersistRequest = "request:persist"
	CmdSendMail       = "mail:send"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend       storage.Backend
	Sender        mail.Sender
	Logger        *slog.Logger
	MailQueueSize int
	SaveTimeout   time.Duration
	SendTimeout   time.Duration
}

// Manager runs request persistence and mail delivery.
type Manager struct {
	deps   Dependencies
	sent   cache.SafeCounter
	failed cache.SafeCounter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MailQueueSize <= 0 {
		deps.MailQueueSize = 100
	}
	if deps.SaveTimeout <= 0 {
		deps.SaveTimeout = 10 * time.Second
	}
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 30 * time.Second
	}
	return &Manager{deps: deps}
}

// Stats counts mail deliveries since start.
type Stats struct {
	MailsSent   int `json:"mailsSent"`
	MailsFailed int `json:"mailsFailed"`
}

func (m *Manager) Stats() Stats {
	return Stats{MailsSent: m.sent.Value(), MailsFailed: m.failed.Value()}
}

// PendingDeliveriesProvider is an optional interface that backends can
// implement to expose delivery records not yet written.
type PendingDeliveriesProvider interface {
	PendingDeliveries() int
}

// PendingDeliveries returns the backend's unwritten delivery records.
// Returns 0 if the backend doesn't buffer them.
func (m *Manager) PendingDeliveries() int {
	if p, ok := m.deps.Backend.(PendingDeliveriesProvider); ok {
		return p.PendingDeliveries()
	}
	return 0
}

func (m *Manager) recordDelivery(ctx context.Context, job mail.Job, sendErr error) {
	rec, ok := m.deps.Backend.(storage.DeliveryRecorder)
	if !ok {
		return
	}
	d := deliveryFor(job, sendErr)
	if err := rec.RecordMailDelivery(ctx, d); err != nil {
		m.deps.Logger.Warn("failed to record mail delivery", "requestId", job.RequestID, "error", err)
	}
}
