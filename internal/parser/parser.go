// Package parser turns an encoded RFC 5322 message back into an email.Email
// so that composed output can be summarised or inspected.
package parser

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/shineum/mail-notifier/internal/email"
)

// Parse parses a raw RFC 5322 email message into an Email struct.
// It handles plain text messages, multipart messages with text/html bodies,
// and attachments. Recoverable MIME problems are reported in Warnings.
func Parse(raw []byte) (*email.Email, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &email.Email{
		From:       env.GetHeader("From"),
		To:         parseAddressList(env.GetHeader("To")),
		Subject:    env.GetHeader("Subject"),
		MessageID:  env.GetHeader("Message-Id"),
		TextBody:   env.Text,
		HTMLBody:   env.HTML,
		RawHeaders: make(map[string][]string),
	}

	if env.Root != nil {
		result.ContentType = env.Root.ContentType
		for key, values := range env.Root.Header {
			result.RawHeaders[key] = values
		}
	}

	for _, part := range env.Attachments {
		result.Attachments = append(result.Attachments, email.Attachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Content:     part.Content,
		})
	}

	for _, perr := range env.Errors {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", perr.Name, perr.Detail))
	}

	return result, nil
}

// parseAddressList splits a comma-separated address list into individual addresses.
func parseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		// Fall back to simple comma split if RFC 5322 parsing fails
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}
