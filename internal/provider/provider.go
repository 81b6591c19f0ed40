// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"

	"github.com/shineum/mail-notifier/internal/message"
)

// Provider is the interface that email delivery backends must implement.
// Each provider hands a composed message to its target service (an SMTP
// server, AWS SES, or stdout for dry runs).
type Provider interface {
	// Send delivers a composed message through this provider.
	// It returns an error if the delivery fails or cannot be confirmed.
	Send(ctx context.Context, msg *message.Composed) error

	// Name returns the human-readable name of this provider.
	Name() string
}
