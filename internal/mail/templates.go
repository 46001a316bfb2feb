package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/ironwatch/site/pkg/core"
)

const businessHTML = `<h2>New security request {{.RequestID}}</h2>
<table>
<tr><th>Name</th><td>{{.FullName}}</td></tr>
<tr><th>Email</th><td>{{.Email}}</td></tr>
<tr><th>Phone</th><td>{{.Phone}}</td></tr>
{{- if .Company}}<tr><th>Company</th><td>{{.Company}}{{if .JobTitle}} ({{.JobTitle}}){{end}}</td></tr>{{end}}
<tr><th>Service</th><td>{{.ServiceType}}</td></tr>
<tr><th>Property</th><td>{{.PropertyType}}</td></tr>
<tr><th>Urgency</th><td>{{.Urgency}}</td></tr>
{{- if .BudgetRange}}<tr><th>Budget</th><td>{{.BudgetRange}}</td></tr>{{end}}
<tr><th>Preferred contact</th><td>{{.PreferredContact}}</td></tr>
<tr><th>Site</th><td>{{.SiteAddress}}</td></tr>
{{- if .StartDate}}<tr><th>Start</th><td>{{.StartDate}}{{if .Duration}}, {{.Duration}}{{end}}</td></tr>{{end}}
</table>
<p>{{.Description}}</p>
{{- if .Attachments}}<p>{{len .Attachments}} attachment(s) enclosed.</p>{{end}}
`

const businessText = `New security request {{.RequestID}}

Name: {{.FullName}}
Email: {{.Email}}
Phone: {{.Phone}}
Service: {{.ServiceType}} / {{.PropertyType}} / {{.Urgency}}
Site: {{.SiteAddress}}

{{.Description}}
`

const userHTML = `<p>Dear {{.FullName}},</p>
<p>Thank you for contacting Ironwatch. We received your request for
<strong>{{.ServiceType}}</strong> and a member of our team will reach you by
{{.PreferredContact}} shortly.</p>
<p>Your reference is <strong>{{.RequestID}}</strong>.</p>
{{- if eq .Urgency "emergency"}}<p>For emergencies please also call our 24/7 line.</p>{{end}}
`

const userText = `Dear {{.FullName}},

Thank you for contacting Ironwatch. We received your request for {{.ServiceType}}
and a member of our team will reach you by {{.PreferredContact}} shortly.

Your reference is {{.RequestID}}.
`

var (
	businessHTMLTmpl = htmltemplate.Must(htmltemplate.New("business.html").Parse(businessHTML))
	businessTextTmpl = texttemplate.Must(texttemplate.New("business.txt").Parse(businessText))
	userHTMLTmpl     = htmltemplate.Must(htmltemplate.New("user.html").Parse(userHTML))
	userTextTmpl     = texttemplate.Must(texttemplate.New("user.txt").Parse(userText))
)

func render(html *htmltemplate.Template, text *texttemplate.Template, r *core.SecurityRequest) (string, string, error) {
	var hb, tb bytes.Buffer
	if err := html.Execute(&hb, r); err != nil {
		return "", "", fmt.Errorf("rendering %s: %w", html.Name(), err)
	}
	if err := text.Execute(&tb, r); err != nil {
		return "", "", fmt.Errorf("rendering %s: %w", text.Name(), err)
	}
	return hb.String(), tb.String(), nil
}

// BusinessNotification builds the mail to the company inbox. It carries
// the request's attachments and replies go to the requester.
func BusinessNotification(r *core.SecurityRequest, from, to string) (Message, error) {
	html, text, err := render(businessHTMLTmpl, businessTextTmpl, r)
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("[%s] %s request from %s", r.RequestID, r.ServiceType, r.FullName)
	if strings.EqualFold(r.Urgency, "emergency") {
		subject = "URGENT " + subject
	}
	return Message{
		Kind:        core.MailBusinessNotification,
		From:        from,
		To:          to,
		ReplyTo:     r.Email,
		Subject:     subject,
		HTML:        html,
		Text:        text,
		Attachments: r.Attachments,
	}, nil
}

// UserConfirmation builds the receipt sent to the requester.
func UserConfirmation(r *core.SecurityRequest, from string) (Message, error) {
	html, text, err := render(userHTMLTmpl, userTextTmpl, r)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:    core.MailUserConfirmation,
		From:    from,
		To:      r.Email,
		Subject: fmt.Sprintf("We received your request (%s)", r.RequestID),
		HTML:    html,
		Text:    text,
	}, nil
}
