// Package stdout implements a dry-run Provider that prints a summary of the
// composed message instead of delivering it.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mail-notifier/internal/message"
	"github.com/shineum/mail-notifier/internal/parser"
)

// Provider prints composed messages in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send decodes msg.Raw and prints what a recipient would see. The summary is
// read back from the encoded bytes, so it reflects the actual MIME output.
func (p *Provider) Send(_ context.Context, msg *message.Composed) error {
	parsed, err := parser.Parse(msg.Raw)
	if err != nil {
		return fmt.Errorf("failed to inspect composed message: %w", err)
	}

	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "From: %s\n", parsed.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(parsed.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", parsed.Subject)
	if parsed.MessageID != "" {
		fmt.Fprintf(&b, "Message-ID: %s\n", parsed.MessageID)
	}
	fmt.Fprintf(&b, "Size: %s\n", formatSize(msg.Size()))

	b.WriteString("Body (text/plain):\n")
	b.WriteString(parsed.TextBody + "\n")
	if parsed.HTMLBody != "" {
		b.WriteString("Body (text/html):\n")
		b.WriteString(parsed.HTMLBody + "\n")
	}

	if len(parsed.Attachments) > 0 {
		attachments := make([]string, 0, len(parsed.Attachments))
		for _, att := range parsed.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	for _, w := range parsed.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}

	b.WriteString("========================================\n")

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write dry-run output: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
