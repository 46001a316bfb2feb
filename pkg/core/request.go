// pkg/core/request.go
package core

import "time"

// RequestStatus tracks a security request through follow-up.
type RequestStatus string

const (
	RequestStatusNew       RequestStatus = "new"
	RequestStatusContacted RequestStatus = "contacted"
	RequestStatusClosed    RequestStatus = "closed"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Attachment is a file supplied with a security request.
type Attachment struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
	// AssetRef is the content-store asset ID once uploaded.
	AssetRef string `json:"assetRef,omitempty"`
}

// SecurityRequest is a validated service request submitted through the site.
type SecurityRequest struct {
	RequestID string `json:"requestId"`

	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Company  string `json:"company,omitempty"`
	JobTitle string `json:"jobTitle,omitempty"`

	ServiceType      string `json:"serviceType"`
	PropertyType     string `json:"propertyType"`
	Urgency          string `json:"urgency"`
	BudgetRange      string `json:"budgetRange,omitempty"`
	PreferredContact string `json:"preferredContact"`

	SiteAddress  string  `json:"siteAddress"`
	SiteLocation *LatLng `json:"siteLocation,omitempty"`
	StartDate    string  `json:"startDate,omitempty"`
	Duration     string  `json:"duration,omitempty"`
	Description  string  `json:"description"`

	Attachments []Attachment `json:"attachments,omitempty"`
	Consent     bool         `json:"consent"`

	SubmittedAt time.Time     `json:"submittedAt"`
	Status      RequestStatus `json:"status"`
}

// MailKind names the two mails sent for every request.
type MailKind string

const (
	MailBusinessNotification MailKind = "business_notification"
	MailUserConfirmation     MailKind = "user_confirmation"
)

// MailDelivery records the outcome of sending one request mail.
type MailDelivery struct {
	Time      time.Time `json:"time"`
	RequestID string    `json:"requestId"`
	Kind      MailKind  `json:"kind"`
	Recipient string    `json:"recipient"`
	Error     string    `json:"error,omitempty"`
}
