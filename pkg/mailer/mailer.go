package mailer

import (
	"context"
	"log"
)

// Sender delivers one rendered message to a single recipient address
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// ConsoleSender logs messages instead of sending them. Used when no email
// provider is configured so local development still exercises the full
// delivery path.
type ConsoleSender struct{}

func NewConsoleSender() *ConsoleSender {
	return &ConsoleSender{}
}

func (s *ConsoleSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	log.Printf("[Mailer] (console) to=%s subject=%q bytes=%d", to, subject, len(htmlBody))
	return nil
}
