package gormstorage

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/internal/database"
	"github.com/ironwatch/site/internal/model"
	"github.com/ironwatch/site/internal/storage"
	"github.com/ironwatch/site/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend          = (*Backend)(nil)
	_ storage.DeliveryRecorder = (*Backend)(nil)
)

var base = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)

	b := New(Dependencies{
		DB:            db,
		Logger:        zerolog.Nop(),
		SiteName:      "Ironwatch",
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func request(id string, offset time.Duration, status core.RequestStatus) *core.SecurityRequest {
	return &core.SecurityRequest{
		RequestID:        id,
		FullName:         "Jane Doe",
		Email:            "jane@example.com",
		Phone:            "0123",
		ServiceType:      "cctv",
		PropertyType:     "retail",
		Urgency:          "medium",
		PreferredContact: "phone",
		SiteAddress:      "2 High Street",
		SiteLocation:     &core.LatLng{Latitude: 52.2, Longitude: 0.12},
		Description:      "Cameras for a shop front.",
		Consent:          true,
		SubmittedAt:      base.Add(offset),
		Status:           status,
		Attachments: []core.Attachment{
			{FileName: "floor.png", ContentType: "image/png", Size: 3, Data: []byte{1, 2, 3}},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveRequest(ctx, request("SR-1", 0, core.RequestStatusNew)))

	got, err := b.GetRequest(ctx, "SR-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.FullName)
	assert.Equal(t, "retail", got.PropertyType)
	assert.True(t, got.SubmittedAt.Equal(base))
	require.NotNil(t, got.SiteLocation)
	assert.InDelta(t, 52.2, got.SiteLocation.Latitude, 1e-6)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, []byte{1, 2, 3}, got.Attachments[0].Data)

	_, err = b.GetRequest(ctx, "SR-404")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveDuplicate(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveRequest(ctx, request("SR-1", 0, core.RequestStatusNew)))
	err := b.SaveRequest(ctx, request("SR-1", 0, core.RequestStatusNew))
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestListRequests(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveRequest(ctx, request("SR-3", 3*time.Hour, core.RequestStatusNew)))
	require.NoError(t, b.SaveRequest(ctx, request("SR-1", 1*time.Hour, core.RequestStatusNew)))
	require.NoError(t, b.SaveRequest(ctx, request("SR-2", 2*time.Hour, core.RequestStatusClosed)))

	all, err := b.ListRequests(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"SR-1", "SR-2", "SR-3"}, ids(all))

	open, err := b.ListRequests(ctx, storage.ListOptions{Status: core.RequestStatusNew})
	require.NoError(t, err)
	assert.Equal(t, []string{"SR-1", "SR-3"}, ids(open))

	recent, err := b.ListRequests(ctx, storage.ListOptions{Since: base.Add(90 * time.Minute), Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"SR-2"}, ids(recent))
}

func TestMailDeliveries_QueuedUntilFlush(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.RecordMailDelivery(ctx, core.MailDelivery{Time: base, RequestID: "SR-1", Kind: core.MailBusinessNotification}))
	require.NoError(t, b.RecordMailDelivery(ctx, core.MailDelivery{Time: base, RequestID: "SR-1", Kind: core.MailUserConfirmation, Error: "bounced"}))
	assert.Equal(t, 2, b.PendingDeliveries())

	var count int64
	require.NoError(t, b.DB().Model(&model.MailDelivery{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	require.NoError(t, b.FlushDeliveries(ctx))
	assert.Equal(t, 0, b.PendingDeliveries())

	require.NoError(t, b.DB().Model(&model.MailDelivery{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestClose_FlushesDeliveries(t *testing.T) {
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, Logger: zerolog.Nop(), FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordMailDelivery(context.Background(), core.MailDelivery{RequestID: "SR-9"}))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Model(&model.MailDelivery{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func ids(rs []core.SecurityRequest) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.RequestID
	}
	return out
}
