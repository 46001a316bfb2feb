// Package request validates and processes security-request form submissions.
package request

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/ironwatch/site/internal/geo"
	"github.com/ironwatch/site/pkg/core"
)

const (
	MaxAttachments    = 5
	MaxAttachmentSize = 10 << 20
)

var (
	ServiceTypes = []string{
		"manned_guarding", "cctv", "alarm_monitoring", "access_control",
		"mobile_patrol", "event_security", "risk_assessment",
	}
	PropertyTypes   = []string{"residential", "commercial", "industrial", "retail", "construction", "public"}
	Urgencies       = []string{"standard", "priority", "emergency"}
	BudgetRanges    = []string{"under_5k", "5k_20k", "20k_50k", "over_50k"}
	ContactMethods  = []string{"email", "phone", "either"}
	Durations       = []string{"one_off", "short_term", "long_term", "ongoing"}
	AttachmentTypes = []string{
		"application/pdf",
		"image/png",
		"image/jpeg",
		"image/webp",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
)

// ErrInvalidBody is returned when the body is not a JSON form.
var ErrInvalidBody = errors.New("invalid request body")

// FieldError names one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a submission.
type ValidationError struct {
	Details []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+" "+d.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the names of the invalid fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		out = append(out, d.Field)
	}
	return out
}

// Location is an optional map pin for the site.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// AttachmentInput is a file as sent by the browser. Data is base64 and may
// carry a data URL prefix.
type AttachmentInput struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,attachmenttype"`
	Data        string `json:"data" validate:"required"`
}

// Form is the JSON body of POST /api/security-request.
type Form struct {
	FullName string `json:"fullName" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=7,max=32"`
	Company  string `json:"company,omitempty" validate:"max=120"`
	JobTitle string `json:"jobTitle,omitempty" validate:"max=120"`

	ServiceType      string `json:"serviceType" validate:"required,servicetype"`
	PropertyType     string `json:"propertyType" validate:"required,propertytype"`
	Urgency          string `json:"urgency" validate:"required,urgency"`
	BudgetRange      string `json:"budgetRange,omitempty" validate:"omitempty,budgetrange"`
	PreferredContact string `json:"preferredContact" validate:"required,contactmethod"`

	SiteAddress  string    `json:"siteAddress" validate:"required,max=300"`
	SiteLocation *Location `json:"siteLocation,omitempty"`
	StartDate    string    `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Duration     string    `json:"duration,omitempty" validate:"omitempty,engagement"`
	Description  string    `json:"description" validate:"required,min=10,max=5000"`

	Attachments []AttachmentInput `json:"attachments,omitempty" validate:"max=5,dive"`
	Consent     bool              `json:"consent" validate:"required"`
}

// JSONSchemaExtend adds the enumerations the validator enforces.
func (Form) JSONSchemaExtend(s *jsonschema.Schema) {
	enum := func(field string, values []string) {
		p, ok := s.Properties.Get(field)
		if !ok {
			return
		}
		p.Enum = make([]any, len(values))
		for i, v := range values {
			p.Enum[i] = v
		}
	}
	enum("serviceType", ServiceTypes)
	enum("propertyType", PropertyTypes)
	enum("urgency", Urgencies)
	enum("budgetRange", BudgetRanges)
	enum("preferredContact", ContactMethods)
	enum("duration", Durations)

	if p, ok := s.Properties.Get("consent"); ok {
		p.Const = true
	}
	if p, ok := s.Properties.Get("attachments"); ok {
		max := uint64(MaxAttachments)
		p.MaxItems = &max
	}
}

// JSONSchemaExtend lists the accepted attachment types.
func (AttachmentInput) JSONSchemaExtend(s *jsonschema.Schema) {
	if p, ok := s.Properties.Get("contentType"); ok {
		p.Enum = make([]any, len(AttachmentTypes))
		for i, v := range AttachmentTypes {
			p.Enum[i] = v
		}
	}
}

// Schema returns the JSON Schema of Form.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
	}
	return r.Reflect(&Form{})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, values := range enumTags {
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return slices.Contains(values, fl.Field().String())
		})
	}
	return v
}

var enumTags = map[string][]string{
	"servicetype":    ServiceTypes,
	"propertytype":   PropertyTypes,
	"urgency":        Urgencies,
	"budgetrange":    BudgetRanges,
	"contactmethod":  ContactMethods,
	"engagement":     Durations,
	"attachmenttype": AttachmentTypes,
}

// Validate checks the form and decodes its attachments. A non-nil error is
// always a *ValidationError.
func (f *Form) Validate() ([]core.Attachment, error) {
	var details []FieldError
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, &ValidationError{Details: []FieldError{{Field: "body", Message: err.Error()}}}
		}
		for _, fe := range verrs {
			details = append(details, FieldError{Field: fieldPath(fe), Message: message(fe)})
		}
	}

	var attachments []core.Attachment
	for i, in := range f.Attachments {
		if in.Data == "" {
			continue
		}
		data, err := decodeData(in.Data)
		field := fmt.Sprintf("attachments[%d].data", i)
		switch {
		case err != nil:
			details = append(details, FieldError{Field: field, Message: "must be base64 encoded"})
		case len(data) > MaxAttachmentSize:
			details = append(details, FieldError{Field: field, Message: "must be at most 10 MiB"})
		default:
			attachments = append(attachments, core.Attachment{
				FileName:    in.FileName,
				ContentType: in.ContentType,
				Size:        int64(len(data)),
				Data:        data,
			})
		}
	}

	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}
	return attachments, nil
}

func decodeData(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data url")
		}
		s = after
	}
	return base64.StdEncoding.DecodeString(s)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	if values, ok := enumTags[fe.Tag()]; ok {
		return "must be one of: " + strings.Join(values, ", ")
	}
	switch fe.Tag() {
	case "required":
		if fe.Field() == "consent" {
			return "must be accepted"
		}
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "gte", "lte":
		return "is out of range"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	default:
		return "is invalid"
	}
}

// toCore builds the request record from a validated form.
func (f *Form) toCore(attachments []core.Attachment) *core.SecurityRequest {
	r := &core.SecurityRequest{
		FullName:         strings.TrimSpace(f.FullName),
		Email:            strings.ToLower(strings.TrimSpace(f.Email)),
		Phone:            strings.TrimSpace(f.Phone),
		Company:          strings.TrimSpace(f.Company),
		JobTitle:         strings.TrimSpace(f.JobTitle),
		ServiceType:      f.ServiceType,
		PropertyType:     f.PropertyType,
		Urgency:          f.Urgency,
		BudgetRange:      f.BudgetRange,
		PreferredContact: f.PreferredContact,
		SiteAddress:      strings.TrimSpace(f.SiteAddress),
		StartDate:        f.StartDate,
		Duration:         f.Duration,
		Description:      strings.TrimSpace(f.Description),
		Attachments:      attachments,
		Consent:          f.Consent,
		Status:           core.RequestStatusNew,
	}
	if f.SiteLocation != nil {
		loc := core.LatLng{Latitude: f.SiteLocation.Latitude, Longitude: f.SiteLocation.Longitude}
		if geo.ValidLatLng(loc) {
			r.SiteLocation = &loc
		}
	}
	return r
}
