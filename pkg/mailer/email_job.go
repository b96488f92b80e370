package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mailtpl "github.com/oksasatya/ailens-auth/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Html is optional; Text is recommended as fallback.
// You can also use a template by specifying Template and Data.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // e.g. "otp"
	Data     map[string]any `json:"data,omitempty"`
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// ErrBadJob marks jobs that can never be delivered and should not be requeued.
var ErrBadJob = errors.New("bad email job")

// Prepare fills recipient fields and renders the template, if any.
func Prepare(job *EmailJob) (subject, text, html string, err error) {
	if strings.TrimSpace(job.To) == "" {
		return "", "", "", fmt.Errorf("%w: missing recipient", ErrBadJob)
	}
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	if v, ok := job.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["RecipientEmail"] = job.To
	}

	if job.Template == "" {
		if job.Text == "" && job.HTML == "" {
			return "", "", "", fmt.Errorf("%w: empty body", ErrBadJob)
		}
		return job.Subject, job.Text, job.HTML, nil
	}
	s, t, h, err := mailtpl.Render(strings.ToLower(job.Template), job.Data)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrBadJob, err)
	}
	if job.Subject != "" {
		s = job.Subject
	}
	return s, t, h, nil
}

// Deliver renders job and hands it to s.
func Deliver(ctx context.Context, s Sender, job *EmailJob) error {
	subject, text, html, err := Prepare(job)
	if err != nil {
		return err
	}
	return s.Send(ctx, job.To, subject, text, html)
}
