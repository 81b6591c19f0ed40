// Package email defines the core email data model used throughout the notifier.
package email

// Content is the caller-supplied part of a notification: what the email says,
// as opposed to where it goes.
type Content struct {
	Subject   string
	PlainBody string

	// HTMLFile names a file holding the HTML body. Directories are dropped
	// and the base name is opened in the working directory. It is read at
	// build time, never interpreted as literal markup.
	HTMLFile string
}

// HasBody reports whether at least one body source is present.
func (c *Content) HasBody() bool {
	return c.PlainBody != "" || c.HTMLFile != ""
}

// Email represents a parsed email message with all its components.
type Email struct {
	From        string
	To          []string
	Subject     string
	MessageID   string
	ContentType string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
	RawHeaders  map[string][]string

	// Warnings lists non-fatal MIME problems found while parsing.
	Warnings []string
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	// Filename is the base name only; directories never leave the host.
	Filename    string
	ContentType string
	Content     []byte
}
