package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ironwatch/site/internal/dispatcher"
	"github.com/ironwatch/site/internal/mail"
	"github.com/ironwatch/site/pkg/core"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Persistence - sync, the submitter logs the outcome
	d.Register(CmdPersistRequest, m.handlePersistRequest, dispatcher.Logged())

	// Mail delivery - buffered, never blocks the submitter
	d.Register(CmdSendMail, m.handleSendMail, dispatcher.Buffered(m.deps.MailQueueSize), dispatcher.Logged())
}

func (m *Manager) handlePersistRequest(e dispatcher.Event) (any, error) {
	r, ok := e.Payload.(*core.SecurityRequest)
	if !ok || r == nil {
		return nil, fmt.Errorf("%s: unexpected payload %T", CmdPersistRequest, e.Payload)
	}
	if m.deps.Backend == nil {
		return nil, fmt.Errorf("%s: no storage backend", CmdPersistRequest)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.deps.SaveTimeout)
	defer cancel()

	if err := m.deps.Backend.SaveRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save request %s: %w", r.RequestID, err)
	}
	return r.RequestID, nil
}

func (m *Manager) handleSendMail(e dispatcher.Event) (any, error) {
	job, ok := e.Payload.(mail.Job)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload %T", CmdSendMail, e.Payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.deps.SendTimeout)
	defer cancel()

	err := m.deps.Sender.Send(ctx, job.Message)
	m.recordDelivery(ctx, job, err)
	if err != nil {
		m.failed.Inc()
		return nil, fmt.Errorf("failed to send %s for %s: %w", job.Message.Kind, job.RequestID, err)
	}
	m.sent.Inc()
	return nil, nil
}

func deliveryFor(job mail.Job, sendErr error) core.MailDelivery {
	d := core.MailDelivery{
		Time:      time.Now().UTC(),
		RequestID: job.RequestID,
		Kind:      job.Message.Kind,
		Recipient: job.Message.To,
	}
	if sendErr != nil {
		d.Error = sendErr.Error()
	}
	return d
}
