package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/internal/storage"
	"github.com/ironwatch/site/pkg/core"
)

// Backend keeps requests in memory and exports them to JSON on Close.
type Backend struct {
	cfg config.MemoryConfig
	now func() time.Time

	requests   map[string]*core.SecurityRequest
	order      []string
	deliveries []core.MailDelivery

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		now:      time.Now,
		requests: make(map[string]*core.SecurityRequest),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports everything stored when an output directory is configured.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" || len(b.order) == 0 {
		return nil
	}
	return b.exportJSON()
}

// SaveRequest stores a copy of r.
func (b *Backend) SaveRequest(_ context.Context, r *core.SecurityRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.requests[r.RequestID]; dup {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, r.RequestID)
	}
	cp := *r
	cp.Attachments = append([]core.Attachment(nil), r.Attachments...)
	b.requests[r.RequestID] = &cp
	b.order = append(b.order, r.RequestID)
	return nil
}

// GetRequest looks up a request by ID.
func (b *Backend) GetRequest(_ context.Context, requestID string) (*core.SecurityRequest, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, requestID)
	}
	cp := *r
	return &cp, nil
}

// ListRequests returns matching requests ordered by submission time.
func (b *Backend) ListRequests(_ context.Context, opts storage.ListOptions) ([]core.SecurityRequest, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listLocked(opts), nil
}

func (b *Backend) listLocked(opts storage.ListOptions) []core.SecurityRequest {
	out := make([]core.SecurityRequest, 0, len(b.order))
	for _, id := range b.order {
		r := b.requests[id]
		if opts.Match(r) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// RecordMailDelivery keeps the delivery for the export.
func (b *Backend) RecordMailDelivery(_ context.Context, d core.MailDelivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = append(b.deliveries, d)
	return nil
}

// Deliveries returns the recorded mail deliveries.
func (b *Backend) Deliveries() []core.MailDelivery {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.MailDelivery(nil), b.deliveries...)
}

// ExportedFilePath returns the path written by the last Close, if any.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
