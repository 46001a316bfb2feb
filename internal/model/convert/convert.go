// Package convert maps security requests between their domain form and
// their GORM rows.
package convert

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/ironwatch/site/internal/geo"
	"github.com/ironwatch/site/internal/model"
	"github.com/ironwatch/site/pkg/core"
)

// details is the JSON shape of SecurityRequest.Details.
type details struct {
	PropertyType     string `json:"propertyType,omitempty"`
	BudgetRange      string `json:"budgetRange,omitempty"`
	PreferredContact string `json:"preferredContact,omitempty"`
	StartDate        string `json:"startDate,omitempty"`
	Duration         string `json:"duration,omitempty"`
}

// RequestToModel converts a domain request into its row. An invalid site
// location is dropped rather than failing the save.
func RequestToModel(r *core.SecurityRequest) (model.SecurityRequest, error) {
	d, err := json.Marshal(details{
		PropertyType:     r.PropertyType,
		BudgetRange:      r.BudgetRange,
		PreferredContact: r.PreferredContact,
		StartDate:        r.StartDate,
		Duration:         r.Duration,
	})
	if err != nil {
		return model.SecurityRequest{}, fmt.Errorf("encoding details: %w", err)
	}

	location := geom.NewEmptyPoint(geom.DimXY)
	if r.SiteLocation != nil {
		if p, err := geo.PointFromLatLng(*r.SiteLocation); err == nil {
			location = p
		}
	}

	m := model.SecurityRequest{
		RequestID:   r.RequestID,
		FullName:    r.FullName,
		Email:       r.Email,
		Phone:       r.Phone,
		Company:     r.Company,
		JobTitle:    r.JobTitle,
		ServiceType: r.ServiceType,
		Urgency:     r.Urgency,
		Details:     datatypes.JSON(d),
		SiteAddress: r.SiteAddress,
		Location:    location,
		Description: r.Description,
		Consent:     r.Consent,
		SubmittedAt: r.SubmittedAt,
		Status:      string(r.Status),
	}
	for _, a := range r.Attachments {
		m.Attachments = append(m.Attachments, model.RequestAttachment{
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
			AssetRef:    a.AssetRef,
			Data:        a.Data,
		})
	}
	return m, nil
}

// RequestToCore converts a row back into a domain request.
func RequestToCore(m *model.SecurityRequest) (core.SecurityRequest, error) {
	var d details
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &d); err != nil {
			return core.SecurityRequest{}, fmt.Errorf("decoding details of %s: %w", m.RequestID, err)
		}
	}

	r := core.SecurityRequest{
		RequestID:        m.RequestID,
		FullName:         m.FullName,
		Email:            m.Email,
		Phone:            m.Phone,
		Company:          m.Company,
		JobTitle:         m.JobTitle,
		ServiceType:      m.ServiceType,
		PropertyType:     d.PropertyType,
		Urgency:          m.Urgency,
		BudgetRange:      d.BudgetRange,
		PreferredContact: d.PreferredContact,
		SiteAddress:      m.SiteAddress,
		StartDate:        d.StartDate,
		Duration:         d.Duration,
		Description:      m.Description,
		Consent:          m.Consent,
		SubmittedAt:      m.SubmittedAt,
		Status:           core.RequestStatus(m.Status),
	}
	if ll, ok := geo.LatLngFromPoint(m.Location); ok {
		r.SiteLocation = &ll
	}
	for _, a := range m.Attachments {
		r.Attachments = append(r.Attachments, core.Attachment{
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Size:        a.Size,
			AssetRef:    a.AssetRef,
			Data:        a.Data,
		})
	}
	return r, nil
}

// DeliveryToModel converts a mail delivery record.
func DeliveryToModel(d core.MailDelivery) model.MailDelivery {
	return model.MailDelivery{
		Time:      d.Time,
		RequestID: d.RequestID,
		Kind:      string(d.Kind),
		Recipient: d.Recipient,
		Error:     d.Error,
	}
}
