package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SiteInfo{},
	&SecurityRequest{},
	&RequestAttachment{},
	&MailDelivery{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// SiteInfo records which site instance owns the database.
type SiteInfo struct {
	gorm.Model
	SiteName     string `json:"siteName" gorm:"size:127"`
	ContactEmail string `json:"contactEmail" gorm:"size:255"`
}

func (*SiteInfo) TableName() string {
	return "site_infos"
}

////////////////////////
// REQUEST MODELS
////////////////////////

// SecurityRequest is a submitted service request.
type SecurityRequest struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	RequestID string    `json:"requestId" gorm:"size:32;uniqueIndex:idx_request_id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FullName string `json:"fullName" gorm:"size:127"`
	Email    string `json:"email" gorm:"size:255;index:idx_request_email"`
	Phone    string `json:"phone" gorm:"size:64"`
	Company  string `json:"company" gorm:"size:127"`
	JobTitle string `json:"jobTitle" gorm:"size:127"`

	ServiceType string `json:"serviceType" gorm:"size:64;index:idx_request_service_type"`
	Urgency     string `json:"urgency" gorm:"size:32"`

	// Details holds the remaining categorical answers (property type,
	// budget, preferred contact, start date, duration).
	Details datatypes.JSON `json:"details"`

	SiteAddress string     `json:"siteAddress" gorm:"size:511"`
	Location    geom.Point `json:"location"`
	Description string     `json:"description"`
	Consent     bool       `json:"consent"`

	SubmittedAt time.Time `json:"submittedAt" gorm:"index:idx_request_submitted_at"`
	Status      string    `json:"status" gorm:"size:32"`

	Attachments []RequestAttachment `json:"attachments" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*SecurityRequest) TableName() string {
	return "security_requests"
}

// RequestAttachment is a file uploaded with a request.
type RequestAttachment struct {
	ID                uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	SecurityRequestID uint   `json:"securityRequestId" gorm:"index:idx_attachment_request_id"`
	FileName          string `json:"fileName" gorm:"size:255"`
	ContentType       string `json:"contentType" gorm:"size:127"`
	Size              int64  `json:"size"`
	AssetRef          string `json:"assetRef" gorm:"size:127"`
	Data              []byte `json:"-"`
}

func (*RequestAttachment) TableName() string {
	return "request_attachments"
}

// MailDelivery logs one attempt to send a request mail.
type MailDelivery struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_mail_time"`
	RequestID string    `json:"requestId" gorm:"size:32;index:idx_mail_request_id"`
	Kind      string    `json:"kind" gorm:"size:32"`
	Recipient string    `json:"recipient" gorm:"size:255"`
	Error     string    `json:"error" gorm:"size:511"`
}

func (*MailDelivery) TableName() string {
	return "mail_deliveries"
}
