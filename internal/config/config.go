// Package config resolves the notifier's settings from an environment-style
// mapping, with an optional YAML or .env file as the base layer.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Defaults for optional settings.
const (
	DefaultPort           = 587
	DefaultTimeoutSeconds = 30
)

// mandatoryFields lists the settings that must be present, in the order they
// are checked. The first absent one is reported.
var mandatoryFields = []string{"USERNAME", "PASSWORD", "FROM", "TO", "HOST"}

// Config holds the complete application configuration.
type Config struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
	To       string `env:"TO"`
	Host     string `env:"HOST"`

	Port           int  `env:"PORT" envDefault:"587" validate:"min=1,max=65535"`
	UseTLS         bool `env:"TLS" envDefault:"true"`
	TimeoutSeconds int  `env:"TIMEOUT" envDefault:"30" validate:"min=1"`

	// Attachments is split by hand so that entries are trimmed while empty
	// ones are kept.
	Attachments []string

	TLSInsecureSkipVerify bool   `env:"TLS_INSECURE_SKIP_VERIFY"`
	TLSCAFile             string `env:"TLS_CA_FILE"`
	AuthMechanism         string `env:"AUTH_MECHANISM" validate:"omitempty,oneof=PLAIN LOGIN"`
	HeloName              string `env:"HELO_NAME" envDefault:"localhost" validate:"required"`
	Transport             string `env:"TRANSPORT" envDefault:"smtp" validate:"oneof=smtp ses stdout"`
	MetricsFile           string `env:"METRICS_FILE"`

	SES     SESConfig     `envPrefix:"SES_"`
	DKIM    DKIMConfig    `envPrefix:"DKIM_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// SESConfig holds AWS SES credentials for the ses transport.
type SESConfig struct {
	Region          string `env:"REGION"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

// DKIMConfig holds the optional DKIM signing settings.
type DKIMConfig struct {
	Domain   string `env:"DOMAIN"`
	Selector string `env:"SELECTOR" envDefault:"default"`
	KeyFile  string `env:"KEY_FILE"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format string `env:"FORMAT" envDefault:"json" validate:"oneof=json text"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report violations by setting name rather than Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("env"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Resolve builds a Config from the given settings. Mandatory settings are
// checked first, in a fixed order, and the first absent one is returned as a
// *MissingFieldError before anything else is parsed. Empty values count as
// absent. Resolve never touches the network or the filesystem.
func Resolve(settings map[string]string) (*Config, error) {
	present := nonEmpty(settings)

	for _, field := range mandatoryFields {
		if _, ok := present[field]; !ok {
			return nil, &MissingFieldError{Field: field}
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: present}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.AuthMechanism = strings.ToUpper(cfg.AuthMechanism)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	cfg.Attachments = splitAttachments(settings["ATTACHMENTS"])

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, &InvalidFieldError{
				Field:  fe.Field(),
				Reason: fmt.Sprintf("failed %q check", fe.Tag()),
			}
		}
		return nil, fmt.Errorf("failed to validate configuration: %w", err)
	}

	return cfg, nil
}

// Timeout returns the single bound applied to every blocking network step.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Addr returns the SMTP server address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DKIMEnabled returns true if both a signing domain and a key file are set.
func (c *Config) DKIMEnabled() bool {
	return c.DKIM.Domain != "" && c.DKIM.KeyFile != ""
}

// LogValue keeps the password out of log output.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.Bool("tls", c.UseTLS),
		slog.Int("timeout_seconds", c.TimeoutSeconds),
		slog.String("username", c.Username),
		slog.String("from", c.From),
		slog.String("to", c.To),
		slog.String("transport", c.Transport),
		slog.Int("attachments", len(c.Attachments)),
	)
}

// splitAttachments splits a comma-separated list, trimming each entry.
// Empty entries are preserved so that a stray comma fails loudly later.
func splitAttachments(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		paths = append(paths, strings.TrimSpace(p))
	}
	return paths
}

// nonEmpty drops settings with empty values.
func nonEmpty(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
