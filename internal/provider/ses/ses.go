// Package ses implements a Provider that hands the composed message to AWS
// SES v2 as a raw MIME document.
package ses

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/mail-notifier/internal/message"
)

// Config holds the settings for creating a Provider.
type Config struct {
	Region string

	// AccessKeyID and SecretAccessKey are optional. When either is empty the
	// default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI is the subset of the SES v2 client used by the provider.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Provider sends email via the AWS SES v2 API.
type Provider struct {
	client SendEmailAPI
	logger *slog.Logger
}

// New loads the AWS configuration and creates a Provider.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(sesv2.NewFromConfig(awsCfg), logger), nil
}

// NewWithClient creates a Provider around an existing client.
func NewWithClient(client SendEmailAPI, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		client: client,
		logger: logger.With("provider", "ses"),
	}
}

// Send submits msg.Raw unchanged, so headers, alternatives, attachments and
// any DKIM signature reach SES exactly as built. There is a single attempt.
func (p *Provider) Send(ctx context.Context, msg *message.Composed) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.EnvelopeFrom),
		Destination: &types.Destination{
			ToAddresses: []string{msg.EnvelopeTo},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: msg.Raw},
		},
	}

	p.logger.Info("sending email", "to", msg.EnvelopeTo, "size", msg.Size())

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s via SES: %w", msg.EnvelopeTo, err)
	}

	p.logger.Debug("SES accepted message", "ses_message_id", aws.ToString(out.MessageId))
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ses"
}
