package influx

import (
	"context"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ironwatch/site/pkg/core"
)

// Measurements written by the site.
const (
	MeasurementFormSubmission = "form_submission"
	MeasurementCMSFetch       = "cms_fetch"
	MeasurementSiteStatus     = "site_status"
)

// SubmissionPoint describes one form submission. r is nil for rejected
// submissions.
func SubmissionPoint(r *core.SecurityRequest, outcome string, took time.Duration, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementFormSubmission).
		AddTag("outcome", outcome).
		AddField("duration_ms", float64(took.Microseconds())/1000).
		SetTime(at)
	if r != nil {
		p.AddTag("service_type", r.ServiceType).
			AddTag("urgency", r.Urgency).
			AddField("attachments", len(r.Attachments))
	}
	return p
}

// FetchPoint describes one CMS query.
func FetchPoint(name string, took time.Duration, cached bool, err error, at time.Time) *influxdb2_write.Point {
	status := "ok"
	if err != nil {
		status = "error"
	}
	return influxdb2_write.NewPointWithMeasurement(MeasurementCMSFetch).
		AddTag("query", name).
		AddTag("status", status).
		AddField("cached", cached).
		AddField("duration_ms", float64(took.Microseconds())/1000).
		SetTime(at)
}

// StatusPoint describes one status sample taken on host.
func StatusPoint(host string, s core.SiteStatus) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementSiteStatus).
		AddTag("host", host).
		AddField("active_sessions", s.ActiveSessions).
		AddField("mail_queue", s.MailQueue).
		AddField("pending_deliveries", s.PendingDeliveries).
		AddField("mails_sent", s.MailsSent).
		AddField("mails_failed", s.MailsFailed).
		AddField("cache_hit_ratio", s.CacheHitRatio()).
		AddField("preloaded_models", s.PreloadedModels).
		SetTime(s.Time)
}

// RecordSubmission writes a form_submission point.
func (m *Manager) RecordSubmission(_ context.Context, r *core.SecurityRequest, outcome string, took time.Duration) {
	if err := m.WritePoint(SubmissionPoint(r, outcome, took, time.Now())); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to write submission point")
	}
}

// ObserveFetch writes a cms_fetch point. It matches cms.FetchObserver.
func (m *Manager) ObserveFetch(name string, took time.Duration, cached bool, err error) {
	if werr := m.WritePoint(FetchPoint(name, took, cached, err, time.Now())); werr != nil {
		m.logger.Warn().Err(werr).Msg("Failed to write fetch point")
	}
}

// WriteStatus writes a site_status point.
func (m *Manager) WriteStatus(_ context.Context, s core.SiteStatus) error {
	return m.WritePoint(StatusPoint(m.host, s))
}
