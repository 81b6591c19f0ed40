// Package notifier runs the whole notification pipeline once: resolve the
// configuration, compose the message, deliver it through the selected
// transport and record the outcome.
package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shineum/mail-notifier/internal/config"
	"github.com/shineum/mail-notifier/internal/message"
	"github.com/shineum/mail-notifier/internal/metrics"
	"github.com/shineum/mail-notifier/internal/provider"
	"github.com/shineum/mail-notifier/internal/provider/ses"
	"github.com/shineum/mail-notifier/internal/provider/smtp"
	"github.com/shineum/mail-notifier/internal/provider/stdout"
	tlsutil "github.com/shineum/mail-notifier/internal/tls"
)

// Options configures a Notifier.
type Options struct {
	Logger *slog.Logger

	// DryRun replaces the configured transport with the stdout provider.
	DryRun bool

	// Output receives dry-run summaries. Defaults to os.Stdout.
	Output io.Writer

	// SESClient overrides the AWS client used by the ses transport.
	SESClient ses.SendEmailAPI
}

// Notifier sends one notification per Run.
type Notifier struct {
	logger    *slog.Logger
	dryRun    bool
	output    io.Writer
	sesClient ses.SendEmailAPI
}

// New creates a Notifier.
func New(opts Options) *Notifier {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Notifier{
		logger:    opts.Logger,
		dryRun:    opts.DryRun,
		output:    opts.Output,
		sesClient: opts.SESClient,
	}
}

// Run resolves settings, builds the message and delivers it. Any failure
// stops the pipeline and is returned unchanged, so callers can match the
// typed errors of the config, message and provider packages.
func (n *Notifier) Run(ctx context.Context, settings map[string]string) error {
	cfg, err := config.Resolve(settings)
	if err != nil {
		return err
	}
	content, err := config.ResolveContent(settings)
	if err != nil {
		return err
	}

	n.logger.Info("starting mail-notifier", "config", cfg, "dry_run", n.dryRun)

	var opts []message.Option
	if cfg.DKIMEnabled() {
		signer, err := message.LoadDKIMSigner(cfg.DKIM.KeyFile)
		if err != nil {
			return err
		}
		opts = append(opts, message.WithDKIM(cfg.DKIM.Domain, cfg.DKIM.Selector, signer))
	}

	msg, err := message.Build(cfg, content, opts...)
	if err != nil {
		return err
	}

	n.logger.Info("composed message",
		"subject", msg.Subject,
		"message_id", msg.MessageID,
		"attachments", msg.Attachments,
		"size", msg.Size(),
		"dkim", cfg.DKIMEnabled(),
	)
	n.logger.Info("message body", "plain", truncate(msg.PlainBody, maxLoggedBody), "html", truncate(msg.HTMLBody, maxLoggedBody))

	prov, err := n.selectProvider(ctx, cfg)
	if err != nil {
		return err
	}

	rec := metrics.New()
	start := time.Now()
	sendErr := prov.Send(ctx, msg)
	rec.ObserveDelivery(prov.Name(), classify(sendErr), msg.Size(), time.Since(start))
	n.writeMetrics(rec, cfg.MetricsFile)

	if sendErr != nil {
		n.logger.Debug("delivery failed", "provider", prov.Name(), "cause", errors.Unwrap(sendErr))
		return sendErr
	}

	n.logger.Info("email sent", "provider", prov.Name(), "to", msg.To, "elapsed", time.Since(start))
	return nil
}

// selectProvider returns the transport named by cfg.Transport, or stdout for
// a dry run.
func (n *Notifier) selectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	transport := cfg.Transport
	if n.dryRun {
		transport = "stdout"
	}

	switch transport {
	case "smtp":
		var tlsConfig *tls.Config
		if cfg.UseTLS {
			c, err := tlsutil.ClientConfig(cfg.Host, cfg.TLSCAFile, cfg.TLSInsecureSkipVerify)
			if err != nil {
				return nil, err
			}
			tlsConfig = c
		}
		return smtp.New(smtp.Config{
			Addr:          cfg.Addr(),
			HeloName:      cfg.HeloName,
			Username:      cfg.Username,
			Password:      cfg.Password,
			AuthMechanism: cfg.AuthMechanism,
			UseTLS:        cfg.UseTLS,
			TLSConfig:     tlsConfig,
			Timeout:       cfg.Timeout(),
		}, n.logger), nil

	case "ses":
		if n.sesClient != nil {
			return ses.NewWithClient(n.sesClient, n.logger), nil
		}
		return ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		}, n.logger)

	case "stdout":
		return stdout.NewWithWriter(n.output), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

// writeMetrics is best effort; the delivery result never depends on it.
func (n *Notifier) writeMetrics(rec *metrics.Recorder, path string) {
	if path == "" {
		return
	}
	if err := rec.WriteFile(path); err != nil {
		n.logger.Warn("failed to write metrics", "error", err)
	}
}

// maxLoggedBody caps how much of each body part is logged, in runes.
const maxLoggedBody = 2048

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func classify(err error) string {
	var transportErr *smtp.TransportError
	var notConfirmed *smtp.DeliveryNotConfirmedError
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &notConfirmed):
		return metrics.ResultNotConfirmed
	case errors.As(err, &transportErr):
		return metrics.ResultTransportError
	default:
		return metrics.ResultError
	}
}
