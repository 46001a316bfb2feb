package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ironwatch/site/pkg/core"
)

var (
	// ErrNotFound is returned by GetRequest for an unknown request ID.
	ErrNotFound = errors.New("request not found")
	// ErrDuplicate is returned when a request ID is saved twice.
	ErrDuplicate = errors.New("duplicate request ID")
)

// ListOptions filters ListRequests. Zero values match everything.
type ListOptions struct {
	Since  time.Time
	Status core.RequestStatus
	Limit  int
}

// Match reports whether r passes the filter.
func (o ListOptions) Match(r *core.SecurityRequest) bool {
	if !o.Since.IsZero() && r.SubmittedAt.Before(o.Since) {
		return false
	}
	if o.Status != "" && r.Status != o.Status {
		return false
	}
	return true
}

// Backend is the interface all security-request stores must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	SaveRequest(ctx context.Context, r *core.SecurityRequest) error
	GetRequest(ctx context.Context, requestID string) (*core.SecurityRequest, error)
	// ListRequests returns matching requests, oldest first.
	ListRequests(ctx context.Context, opts ListOptions) ([]core.SecurityRequest, error)
}

// DeliveryRecorder is an optional interface for backends that keep a log
// of request mails.
type DeliveryRecorder interface {
	RecordMailDelivery(ctx context.Context, d core.MailDelivery) error
}

// Exporter is an optional interface for backends that write an export file
// when closed.
type Exporter interface {
	ExportedFilePath() string
}
