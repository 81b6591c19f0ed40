// Package smtp implements a Provider that delivers a composed message to an
// SMTP submission server: connect, EHLO, optional STARTTLS and re-EHLO,
// AUTH, MAIL/RCPT/DATA, a NOOP confirmation, and QUIT.
package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/shineum/mail-notifier/internal/message"
)

// Config holds the transport settings for one delivery.
type Config struct {
	// Addr is the server address in host:port form.
	Addr string

	// HeloName is announced in EHLO.
	HeloName string

	Username string
	Password string

	// AuthMechanism forces PLAIN or LOGIN. Empty picks automatically.
	AuthMechanism string

	// UseTLS upgrades the connection with STARTTLS before authenticating.
	UseTLS bool

	// TLSConfig is used for the STARTTLS handshake.
	TLSConfig *tls.Config

	// Timeout bounds the dial and every command round trip.
	Timeout time.Duration
}

// Provider sends email through an SMTP server. Each Send opens and closes
// its own connection.
type Provider struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a new SMTP Provider.
func New(cfg Config, logger *slog.Logger) *Provider {
	if cfg.HeloName == "" {
		cfg.HeloName = "localhost"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		cfg:    cfg,
		logger: logger.With("provider", "smtp", "addr", cfg.Addr),
	}
}

// Send delivers msg. It returns *TransportError for connection, TLS,
// authentication or transmission failures, and *DeliveryNotConfirmedError
// when the server does not confirm with 250 afterwards.
func (p *Provider) Send(ctx context.Context, msg *message.Composed) error {
	p.logger.Info("sending email", "to", msg.EnvelopeTo, "tls", p.cfg.UseTLS, "size", msg.Size())
	return newSession(p.cfg, p.logger).deliver(ctx, msg)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}
