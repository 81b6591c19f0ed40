// Package message composes the outgoing notification: a multipart/alternative
// plain and HTML body plus binary attachments, optionally DKIM-signed.
package message

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jaytaylor/html2text"
	"gopkg.in/gomail.v2"

	"github.com/shineum/mail-notifier/internal/config"
	"github.com/shineum/mail-notifier/internal/email"
)

// Composed is a fully encoded message ready for a provider. It is never
// modified after Build returns.
type Composed struct {
	// From and To are the header values as configured.
	From string
	To   string

	// EnvelopeFrom and EnvelopeTo are the bare addresses used for MAIL FROM
	// and RCPT TO.
	EnvelopeFrom string
	EnvelopeTo   string

	Subject     string
	MessageID   string
	PlainBody   string
	HTMLBody    string
	Attachments []string

	// Raw is the RFC 5322 encoding, including the DKIM signature if any.
	Raw []byte
}

// Size returns the encoded size in bytes.
func (c *Composed) Size() int {
	return len(c.Raw)
}

// Option configures Build.
type Option func(*options)

type options struct {
	dkim *dkimOptions
}

type dkimOptions struct {
	domain   string
	selector string
	signer   crypto.Signer
}

// WithDKIM signs the encoded message for domain using selector.
func WithDKIM(domain, selector string, signer crypto.Signer) Option {
	return func(o *options) {
		o.dkim = &dkimOptions{domain: domain, selector: selector, signer: signer}
	}
}

// Build assembles the message described by cfg and content. Every
// attachment must load; on any failure no message is returned.
func Build(cfg *config.Config, content *email.Content, opts ...Option) (*Composed, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if !content.HasBody() {
		return nil, ErrEmptyBody
	}

	plain := content.PlainBody
	// Without an HTML file the HTML part mirrors the plain text as-is.
	html := plain

	if content.HTMLFile != "" {
		// Only the base name is used, resolved against the working directory.
		data, name, err := readLocal(displayName(content.HTMLFile))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &HTMLBodyNotFoundError{Name: name}
			}
			return nil, fmt.Errorf("failed to read HTML body %s: %w", name, stripPath(err))
		}
		html = string(data)

		if plain == "" {
			text, err := html2text.FromString(html, html2text.Options{PrettyTables: true})
			if err != nil {
				return nil, fmt.Errorf("failed to derive plain body from HTML: %w", err)
			}
			plain = text
		}
	}

	attachments := make([]*email.Attachment, 0, len(cfg.Attachments))
	for _, path := range cfg.Attachments {
		att, err := LoadAttachment(path)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}

	composed := &Composed{
		From:         cfg.From,
		To:           cfg.To,
		EnvelopeFrom: envelopeAddress(cfg.From),
		EnvelopeTo:   envelopeAddress(cfg.To),
		Subject:      content.Subject,
		PlainBody:    plain,
		HTMLBody:     html,
	}
	composed.MessageID = messageID(composed.EnvelopeFrom)

	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", cfg.To)
	m.SetHeader("Subject", content.Subject)
	m.SetHeader("Message-ID", composed.MessageID)

	// Plain first: clients prefer the last alternative they can render.
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)

	for _, att := range attachments {
		m.Attach(att.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
			gomail.SetCopyFunc(copyBytes(att.Content)),
		)
		composed.Attachments = append(composed.Attachments, att.Filename)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	composed.Raw = buf.Bytes()

	if o.dkim != nil {
		signed, err := sign(composed.Raw, o.dkim)
		if err != nil {
			return nil, err
		}
		composed.Raw = signed
	}

	return composed, nil
}

func copyBytes(data []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}

// envelopeAddress extracts the bare address from a header value such as
// "Build Bot <ci@example.com>". Unparseable values are used verbatim.
func envelopeAddress(header string) string {
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return header
	}
	return addr.Address
}

func messageID(sender string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(sender, "@"); ok && d != "" {
		domain = d
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
