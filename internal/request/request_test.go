package request

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/internal/dispatcher"
	"github.com/ironwatch/site/internal/mail"
	"github.com/ironwatch/site/internal/worker"
	"github.com/ironwatch/site/pkg/core"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	events []dispatcher.Event
	fail   map[string]error
}

func (d *fakeDispatcher) Dispatch(e dispatcher.Event) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil, d.fail[e.Command]
}

func (d *fakeDispatcher) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Command)
	}
	return out
}

type recorder struct {
	outcomes []string
}

func (r *recorder) RecordSubmission(_ context.Context, _ *core.SecurityRequest, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func validForm() map[string]any {
	return map[string]any{
		"fullName":         "Jane Doe",
		"email":            "Jane@Example.com",
		"phone":            "+44 20 7946 0000",
		"serviceType":      "cctv",
		"propertyType":     "commercial",
		"urgency":          "priority",
		"preferredContact": "email",
		"siteAddress":      "1 High Street, London",
		"description":      "Need cameras covering the loading bay.",
		"consent":          true,
	}
}

func body(t *testing.T, form map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(form)
	require.NoError(t, err)
	return b
}

func newService(t *testing.T, d Dispatcher, opts ...Option) *Service {
	t.Helper()
	s, err := NewService(Config{MailFrom: "site@ironwatch.example", BusinessTo: "ops@ironwatch.example"}, d, nil, opts...)
	require.NoError(t, err)
	return s
}

func TestNewRequestID(t *testing.T) {
	now := time.UnixMilli(1760000000123)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRequestID(now)
		assert.Regexp(t, IDPattern, id)
		assert.True(t, strings.HasPrefix(id, "SR-1760000000123-"))
		seen[id] = true
	}
	assert.Greater(t, len(seen), 90)
}

func TestSubmit_Valid(t *testing.T) {
	d := &fakeDispatcher{}
	rec := &recorder{}
	s := newService(t, d, WithRecorder(rec))

	resp, err := s.Submit(context.Background(), body(t, validForm()))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
	assert.Regexp(t, `^SR-\d+-[a-z0-9]{9}$`, resp.RequestID)
	assert.Equal(t, []string{worker.CmdPersistRequest, worker.CmdSendMail, worker.CmdSendMail}, d.commands())
	assert.Equal(t, []string{OutcomeAccepted}, rec.outcomes)

	r := d.events[0].Payload.(*core.SecurityRequest)
	assert.Equal(t, resp.RequestID, r.RequestID)
	assert.Equal(t, "jane@example.com", r.Email)
	assert.Equal(t, core.RequestStatusNew, r.Status)
	assert.False(t, r.SubmittedAt.IsZero())

	business := d.events[1].Payload.(mail.Job)
	assert.Equal(t, core.MailBusinessNotification, business.Message.Kind)
	assert.Equal(t, "ops@ironwatch.example", business.Message.To)
	confirmation := d.events[2].Payload.(mail.Job)
	assert.Equal(t, core.MailUserConfirmation, confirmation.Message.Kind)
	assert.Equal(t, "jane@example.com", confirmation.Message.To)
}

func TestSubmit_MissingFullName(t *testing.T) {
	d := &fakeDispatcher{}
	rec := &recorder{}
	s := newService(t, d, WithRecorder(rec))

	form := validForm()
	delete(form, "fullName")

	_, err := s.Submit(context.Background(), body(t, form))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"fullName"}, verr.Fields())
	assert.Equal(t, "is required", verr.Details[0].Message)
	assert.Empty(t, d.commands())
	assert.Equal(t, []string{OutcomeInvalid}, rec.outcomes)
}

func TestSubmit_InvalidFields(t *testing.T) {
	s := newService(t, &fakeDispatcher{})

	form := validForm()
	form["email"] = "not-an-email"
	form["serviceType"] = "ninjas"
	form["consent"] = false
	form["startDate"] = "next week"

	_, err := s.Submit(context.Background(), body(t, form))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"email", "serviceType", "consent", "startDate"}, verr.Fields())

	for _, d := range verr.Details {
		if d.Field == "serviceType" {
			assert.Contains(t, d.Message, "cctv")
		}
		if d.Field == "consent" {
			assert.Equal(t, "must be accepted", d.Message)
		}
	}
}

func TestSubmit_InvalidJSON(t *testing.T) {
	s := newService(t, &fakeDispatcher{})
	_, err := s.Submit(context.Background(), []byte(`{"fullName":`))
	assert.ErrorIs(t, err, ErrInvalidBody)
}

func TestSubmit_PersistAndMailFailuresStillSucceed(t *testing.T) {
	d := &fakeDispatcher{fail: map[string]error{
		worker.CmdPersistRequest: errors.New("database down"),
		worker.CmdSendMail:       dispatcher.ErrQueueFull,
	}}
	s := newService(t, d)

	resp, err := s.Submit(context.Background(), body(t, validForm()))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Len(t, d.commands(), 3)
}

func TestSubmit_Attachments(t *testing.T) {
	d := &fakeDispatcher{}
	s := newService(t, d)

	form := validForm()
	form["attachments"] = []map[string]any{
		{"fileName": "plan.pdf", "contentType": "application/pdf", "data": base64.StdEncoding.EncodeToString([]byte("%PDF-1.7"))},
		{"fileName": "site.png", "contentType": "image/png", "data": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})},
	}
	_, err := s.Submit(context.Background(), body(t, form))
	require.NoError(t, err)

	r := d.events[0].Payload.(*core.SecurityRequest)
	require.Len(t, r.Attachments, 2)
	assert.Equal(t, int64(8), r.Attachments[0].Size)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, r.Attachments[1].Data)

	business := d.events[1].Payload.(mail.Job)
	assert.Len(t, business.Message.Attachments, 2)
}

func TestSubmit_AttachmentLimits(t *testing.T) {
	s := newService(t, &fakeDispatcher{})

	one := map[string]any{"fileName": "a.pdf", "contentType": "application/pdf", "data": "JVBERg=="}
	form := validForm()
	form["attachments"] = []map[string]any{one, one, one, one, one, one}

	_, err := s.Submit(context.Background(), body(t, form))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "attachments")

	form["attachments"] = []map[string]any{
		{"fileName": "a.exe", "contentType": "application/x-msdownload", "data": "TVo="},
		{"fileName": "b.pdf", "contentType": "application/pdf", "data": "%%%"},
	}
	_, err = s.Submit(context.Background(), body(t, form))
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"attachments[0].contentType", "attachments[1].data"}, verr.Fields())
}

func TestSubmit_AttachmentTooLarge(t *testing.T) {
	f := &Form{Attachments: []AttachmentInput{{
		FileName:    "big.pdf",
		ContentType: "application/pdf",
		Data:        base64.StdEncoding.EncodeToString(make([]byte, MaxAttachmentSize+1)),
	}}}
	_, err := f.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), "attachments[0].data")
}

func TestSubmit_SiteLocation(t *testing.T) {
	d := &fakeDispatcher{}
	s := newService(t, d)

	form := validForm()
	form["siteLocation"] = map[string]any{"latitude": 51.5074, "longitude": -0.1278}
	_, err := s.Submit(context.Background(), body(t, form))
	require.NoError(t, err)
	r := d.events[0].Payload.(*core.SecurityRequest)
	require.NotNil(t, r.SiteLocation)
	assert.InDelta(t, 51.5074, r.SiteLocation.Latitude, 1e-9)

	form["siteLocation"] = map[string]any{"latitude": 123.0, "longitude": 0.0}
	_, err = s.Submit(context.Background(), body(t, form))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"siteLocation.latitude"}, verr.Fields())
}

func TestSchema(t *testing.T) {
	s := Schema()
	assert.Contains(t, s.Required, "fullName")
	assert.NotContains(t, s.Required, "company")

	p, ok := s.Properties.Get("serviceType")
	require.True(t, ok)
	assert.Contains(t, p.Enum, "cctv")

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"application/pdf"`)
}
