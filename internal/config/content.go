package config

import (
	"strings"

	"github.com/shineum/mail-notifier/internal/email"
)

// ResolveContent reads the subject and body sources. SUBJECT is mandatory;
// whether a usable body exists is decided when the message is built.
func ResolveContent(settings map[string]string) (*email.Content, error) {
	subject := settings["SUBJECT"]
	if subject == "" {
		return nil, &MissingFieldError{Field: "SUBJECT"}
	}

	return &email.Content{
		Subject:   subject,
		PlainBody: settings["BODY_PLAIN"],
		HTMLFile:  strings.TrimSpace(settings["BODY_HTML"]),
	}, nil
}
