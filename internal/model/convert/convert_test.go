package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/internal/model"
	"github.com/ironwatch/site/pkg/core"
)

func sampleRequest() *core.SecurityRequest {
	return &core.SecurityRequest{
		RequestID:        "SR-1700000000000-abc123xyz",
		FullName:         "Jane Doe",
		Email:            "jane@example.com",
		Phone:            "+44 20 7946 0000",
		ServiceType:      "manned-guarding",
		PropertyType:     "commercial",
		Urgency:          "high",
		BudgetRange:      "10k-25k",
		PreferredContact: "email",
		SiteAddress:      "1 Bank Street, London",
		SiteLocation:     &core.LatLng{Latitude: 51.5055, Longitude: -0.0196},
		StartDate:        "2026-11-01",
		Description:      "Night patrols for an office block.",
		Consent:          true,
		SubmittedAt:      time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Status:           core.RequestStatusNew,
		Attachments: []core.Attachment{
			{FileName: "plan.pdf", ContentType: "application/pdf", Size: 4, Data: []byte("%PDF")},
		},
	}
}

func TestRequestToModel(t *testing.T) {
	m, err := RequestToModel(sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "SR-1700000000000-abc123xyz", m.RequestID)
	assert.Equal(t, "manned-guarding", m.ServiceType)
	assert.JSONEq(t, `{
		"propertyType": "commercial",
		"budgetRange": "10k-25k",
		"preferredContact": "email",
		"startDate": "2026-11-01"
	}`, string(m.Details))
	assert.False(t, m.Location.IsEmpty())
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "plan.pdf", m.Attachments[0].FileName)
	assert.Equal(t, "new", m.Status)
}

func TestRequestToModel_InvalidLocationDropped(t *testing.T) {
	r := sampleRequest()
	r.SiteLocation = &core.LatLng{Latitude: 123, Longitude: 0}

	m, err := RequestToModel(r)
	require.NoError(t, err)
	assert.True(t, m.Location.IsEmpty())
}

func TestRequestToCore_RoundTrip(t *testing.T) {
	in := sampleRequest()
	m, err := RequestToModel(in)
	require.NoError(t, err)

	out, err := RequestToCore(&m)
	require.NoError(t, err)

	require.NotNil(t, out.SiteLocation)
	assert.InDelta(t, in.SiteLocation.Latitude, out.SiteLocation.Latitude, 1e-6)
	assert.InDelta(t, in.SiteLocation.Longitude, out.SiteLocation.Longitude, 1e-6)

	out.SiteLocation = in.SiteLocation
	assert.Equal(t, *in, out)
}

func TestRequestToCore_NoLocation(t *testing.T) {
	r := sampleRequest()
	r.SiteLocation = nil
	m, err := RequestToModel(r)
	require.NoError(t, err)

	out, err := RequestToCore(&m)
	require.NoError(t, err)
	assert.Nil(t, out.SiteLocation)
}

func TestRequestToCore_BadDetails(t *testing.T) {
	_, err := RequestToCore(&model.SecurityRequest{RequestID: "SR-1", Details: []byte("{")})
	assert.Error(t, err)
}

func TestDeliveryToModel(t *testing.T) {
	now := time.Now()
	m := DeliveryToModel(core.MailDelivery{
		Time:      now,
		RequestID: "SR-1",
		Kind:      core.MailUserConfirmation,
		Recipient: "jane@example.com",
		Error:     "timeout",
	})
	assert.Equal(t, "user_confirmation", m.Kind)
	assert.Equal(t, "timeout", m.Error)
	assert.Equal(t, now, m.Time)
}
