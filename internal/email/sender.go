// Package email notifies caregivers about long-running ingestion work.
package email

import (
	"context"
	"errors"
)

// Sender delivers a caregiver-facing notification email.
type Sender interface {
	SendIngestionComplete(ctx context.Context, toEmail, eventName string, filesIngested int) error
}

type disabledSender struct {
	reason string
}

// NewDisabledSender returns a Sender that always fails, used when no SMTP
// host is configured so callers get an explicit error instead of a silent
// no-op.
func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendIngestionComplete(_ context.Context, _, _ string, _ int) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
