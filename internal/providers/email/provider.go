package email

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("email_not_configured")

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a plain text mail with optional attachments.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return ErrNotConfigured
}
