package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ironwatch/site/internal/dispatcher"
	"github.com/ironwatch/site/internal/mail"
	"github.com/ironwatch/site/internal/worker"
	"github.com/ironwatch/site/pkg/core"
)

const instrumentationName = "github.com/ironwatch/site/internal/request"

const successMessage = "Thank you. Your request has been received and our team will be in touch shortly."

// Submission outcomes reported to the Recorder.
const (
	OutcomeAccepted = "accepted"
	OutcomeInvalid  = "invalid"
)

// Dispatcher routes persistence and mail work to the workers.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Recorder receives one call per submission.
type Recorder interface {
	RecordSubmission(ctx context.Context, r *core.SecurityRequest, outcome string, took time.Duration)
}

// Response is the body of a successful submission.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// Config holds the mail addresses used for every submission.
type Config struct {
	MailFrom   string
	BusinessTo string
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder reports submissions to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service turns a raw form body into a persisted request and two queued
// mails. Only decoding and validation can fail a submission.
type Service struct {
	cfg         Config
	dispatcher  Dispatcher
	logger      *slog.Logger
	recorder    Recorder
	now         func() time.Time
	submissions metric.Int64Counter
}

// NewService creates a Service.
func NewService(cfg Config, d Dispatcher, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	s.submissions, err = otel.Meter(instrumentationName).Int64Counter(
		"site.form.submissions",
		metric.WithDescription("Security request submissions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating submissions counter: %w", err)
	}
	return s, nil
}

// Submit decodes and validates raw. It returns ErrInvalidBody for malformed
// JSON and a *ValidationError for invalid fields. Once the form is valid the
// submission succeeds: persistence and mail failures are only logged.
func (s *Service) Submit(ctx context.Context, raw []byte) (*Response, error) {
	start := s.now()

	var form Form
	if err := json.Unmarshal(raw, &form); err != nil {
		s.record(ctx, nil, OutcomeInvalid, start)
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	attachments, err := form.Validate()
	if err != nil {
		s.record(ctx, nil, OutcomeInvalid, start)
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.logger.Info("security request rejected", "fields", verr.Fields())
		}
		return nil, err
	}

	r := form.toCore(attachments)
	r.SubmittedAt = start.UTC()
	r.RequestID = NewRequestID(start)
	log := s.logger.With("requestId", r.RequestID)

	if _, err := s.dispatcher.Dispatch(dispatcher.Event{
		Command: worker.CmdPersistRequest,
		Payload: r,
	}); err != nil {
		log.Error("failed to persist security request", "error", err)
	}

	s.queueMails(log, r)

	log.Info("security request accepted",
		"serviceType", r.ServiceType,
		"urgency", r.Urgency,
		"attachments", len(r.Attachments))
	s.record(ctx, r, OutcomeAccepted, start)

	return &Response{
		Success:   true,
		Message:   successMessage,
		RequestID: r.RequestID,
	}, nil
}

func (s *Service) queueMails(log *slog.Logger, r *core.SecurityRequest) {
	business, err := mail.BusinessNotification(r, s.cfg.MailFrom, s.cfg.BusinessTo)
	if err != nil {
		log.Error("failed to build business notification", "error", err)
	} else {
		s.queueMail(log, r.RequestID, business)
	}

	confirmation, err := mail.UserConfirmation(r, s.cfg.MailFrom)
	if err != nil {
		log.Error("failed to build user confirmation", "error", err)
	} else {
		s.queueMail(log, r.RequestID, confirmation)
	}
}

func (s *Service) queueMail(log *slog.Logger, requestID string, msg mail.Message) {
	_, err := s.dispatcher.Dispatch(dispatcher.Event{
		Command: worker.CmdSendMail,
		Payload: mail.Job{RequestID: requestID, Message: msg},
	})
	if err != nil {
		log.Warn("failed to queue mail", "kind", msg.Kind, "error", err)
	}
}

func (s *Service) record(ctx context.Context, r *core.SecurityRequest, outcome string, start time.Time) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if r != nil {
		attrs = append(attrs, attribute.String("service_type", r.ServiceType))
	}
	s.submissions.Add(ctx, 1, metric.WithAttributes(attrs...))

	if s.recorder != nil {
		s.recorder.RecordSubmission(ctx, r, outcome, s.now().Sub(start))
	}
}
