// Package email sends lead notification emails.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string
	From    string
	Subject string
	HTML    string
	ReplyTo string
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

var leadTemplate = template.Must(template.New("lead").Parse(`<h2>New {{.Kind}} request</h2>
<table>
<tr><th align="left">Name</th><td>{{.Name}}</td></tr>
<tr><th align="left">Email</th><td><a href="mailto:{{.Email}}">{{.Email}}</a></td></tr>
{{if .Phone}}<tr><th align="left">Phone</th><td>{{.Phone}}</td></tr>{{end}}
{{if .ProgramSlug}}<tr><th align="left">Program</th><td>{{.ProgramSlug}}</td></tr>{{end}}
{{if .AircraftSlug}}<tr><th align="left">Aircraft</th><td>{{.AircraftSlug}}</td></tr>{{end}}
{{if .SourcePath}}<tr><th align="left">Page</th><td>{{.SourcePath}}</td></tr>{{end}}
</table>
{{if .Message}}<p>{{.Message}}</p>{{end}}
`))

// LeadMessage renders the office notification for a lead. Replies go to the prospect.
func LeadMessage(r site.Request, to []string) (SendRequest, error) {
	var buf bytes.Buffer
	if err := leadTemplate.Execute(&buf, r); err != nil {
		return SendRequest{}, fmt.Errorf("render lead email: %w", err)
	}
	return SendRequest{
		To:      to,
		Subject: fmt.Sprintf("New %s request from %s", r.Kind, r.Name),
		HTML:    buf.String(),
		ReplyTo: r.Email,
	}, nil
}
