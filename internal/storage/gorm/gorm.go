// Package gormstorage implements storage.Backend on a GORM database.
// Requests are written synchronously; mail delivery records are queued and
// written in batches by a background loop.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ironwatch/site/internal/database"
	"github.com/ironwatch/site/internal/model"
	"github.com/ironwatch/site/internal/model/convert"
	"github.com/ironwatch/site/internal/queue"
	"github.com/ironwatch/site/internal/storage"
	"github.com/ironwatch/site/pkg/core"
)

// Dependencies holds everything the backend needs.
type Dependencies struct {
	DB            *gorm.DB
	Logger        zerolog.Logger
	SiteName      string
	FlushInterval time.Duration
	// QueueLimit bounds pending delivery records; zero means 10000.
	QueueLimit int
}

// Backend stores requests through GORM.
type Backend struct {
	db            *gorm.DB
	log           zerolog.Logger
	siteName      string
	flushInterval time.Duration

	deliveries *queue.Queue[model.MailDelivery]

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a GORM backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	interval := deps.FlushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	limit := deps.QueueLimit
	if limit <= 0 {
		limit = 10000
	}
	return &Backend{
		db:            deps.DB,
		log:           deps.Logger,
		siteName:      deps.SiteName,
		flushInterval: interval,
		deliveries:    queue.New[model.MailDelivery](limit),
		stopChan:      make(chan struct{}),
	}
}

// DB exposes the underlying connection for wrappers.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema and starts the delivery writer.
func (b *Backend) Init() error {
	if err := database.Migrate(b.db, b.siteName); err != nil {
		return err
	}
	b.wg.Add(1)
	go b.flushLoop()
	return nil
}

// Close stops the writer after a final flush.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	return b.FlushDeliveries(context.Background())
}

// SaveRequest inserts the request and its attachments in one transaction.
func (b *Backend) SaveRequest(ctx context.Context, r *core.SecurityRequest) error {
	m, err := convert.RequestToModel(r)
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.SecurityRequest{}).Where("request_id = ?", r.RequestID).Count(&n).Error; err != nil {
			return fmt.Errorf("checking request %s: %w", r.RequestID, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, r.RequestID)
		}
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("inserting request %s: %w", r.RequestID, err)
		}
		return nil
	})
}

// GetRequest loads a request with its attachments.
func (b *Backend) GetRequest(ctx context.Context, requestID string) (*core.SecurityRequest, error) {
	var m model.SecurityRequest
	err := b.db.WithContext(ctx).Preload("Attachments").Where("request_id = ?", requestID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading request %s: %w", requestID, err)
	}
	r, err := convert.RequestToCore(&m)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests loads matching requests, oldest first.
func (b *Backend) ListRequests(ctx context.Context, opts storage.ListOptions) ([]core.SecurityRequest, error) {
	q := b.db.WithContext(ctx).Preload("Attachments").Order("submitted_at asc")
	if !opts.Since.IsZero() {
		q = q.Where("submitted_at >= ?", opts.Since)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []model.SecurityRequest
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	out := make([]core.SecurityRequest, 0, len(rows))
	for i := range rows {
		r, err := convert.RequestToCore(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// RecordMailDelivery queues a delivery record for the next flush.
func (b *Backend) RecordMailDelivery(_ context.Context, d core.MailDelivery) error {
	if dropped := b.deliveries.Push(convert.DeliveryToModel(d)); dropped > 0 {
		b.log.Warn().Int("dropped", dropped).Msg("Delivery queue full, dropped oldest records")
	}
	return nil
}

// PendingDeliveries returns the number of queued delivery records.
func (b *Backend) PendingDeliveries() int {
	return b.deliveries.Len()
}

// FlushDeliveries writes every queued delivery record. Records from a
// failed write are put back.
func (b *Backend) FlushDeliveries(ctx context.Context) error {
	batch := b.deliveries.GetAndEmpty()
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	if err := b.db.WithContext(ctx).CreateInBatches(batch, 500).Error; err != nil {
		b.deliveries.Requeue(batch...)
		return fmt.Errorf("writing %d mail deliveries: %w", len(batch), err)
	}
	b.log.Debug().Int("count", len(batch)).Dur("duration", time.Since(start)).Msg("Wrote mail deliveries")
	return nil
}

func (b *Backend) flushLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.FlushDeliveries(context.Background()); err != nil {
				b.log.Error().Err(err).Msg("Failed to flush mail deliveries")
			}
		}
	}
}
