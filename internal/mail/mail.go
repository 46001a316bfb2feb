// Package mail sends the transactional mails that follow a security request.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/pkg/core"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("mail: no recipient")

// Message is one outgoing mail.
type Message struct {
	Kind        core.MailKind
	From        string
	To          string
	ReplyTo     string
	Subject     string
	HTML        string
	Text        string
	Attachments []core.Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogSender only logs messages. It is the default when no mail API is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.logger.Info("mail not sent, log provider",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments))
	return nil
}

// NewSender picks the sender for cfg.Provider.
func NewSender(cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogSender(logger), nil
	case "http":
		if cfg.APIURL == "" {
			return nil, fmt.Errorf("mail provider http needs mail.apiUrl")
		}
		return NewHTTPSender(cfg.APIURL, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown mail provider: %s", cfg.Provider)
	}
}

// Job is a queued message for one request.
type Job struct {
	RequestID string
	Message   Message
}
