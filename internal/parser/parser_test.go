package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainTextEmail(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Test Subject",
		"Message-Id: <test123@example.com>",
		"Content-Type: text/plain",
		"",
		"Hello, this is a plain text email.",
	}, "\r\n"))

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "sender@example.com", msg.From)
	assert.Equal(t, []string{"recipient@example.com"}, msg.To)
	assert.Equal(t, "Test Subject", msg.Subject)
	assert.Equal(t, "<test123@example.com>", msg.MessageID)
	assert.Equal(t, "Hello, this is a plain text email.", msg.TextBody)
	assert.Empty(t, msg.HTMLBody)
	assert.Empty(t, msg.Attachments)
	assert.Equal(t, "text/plain", msg.ContentType)
}

func TestParseMultipartAlternative(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: alice@example.com, Bob <bob@example.com>",
		"Subject: Multipart Test",
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=boundary123",
		"",
		"--boundary123",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		"Plain text body",
		"--boundary123",
		"Content-Type: text/html; charset=UTF-8",
		"",
		"<html><body><p>HTML body</p></body></html>",
		"--boundary123--",
	}, "\r\n"))

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, msg.To)
	assert.Equal(t, "multipart/alternative", msg.ContentType)
	assert.Equal(t, "Plain text body", msg.TextBody)
	assert.Equal(t, "<html><body><p>HTML body</p></body></html>", msg.HTMLBody)
	assert.Empty(t, msg.Attachments)
}

func TestParseNestedMultipartWithAttachment(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Nested",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: multipart/alternative; boundary=inner",
		"",
		"--inner",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		"plain",
		"--inner",
		"Content-Type: text/html; charset=UTF-8",
		"",
		"<b>html</b>",
		"--inner--",
		"",
		"--outer",
		"Content-Type: application/octet-stream",
		"Content-Disposition: attachment; filename=\"data.bin\"",
		"Content-Transfer-Encoding: base64",
		"",
		"aGVsbG8gd29ybGQ=",
		"--outer--",
	}, "\r\n"))

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "multipart/mixed", msg.ContentType)
	assert.Equal(t, "plain", msg.TextBody)
	assert.Equal(t, "<b>html</b>", msg.HTMLBody)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "data.bin", msg.Attachments[0].Filename)
	assert.Equal(t, "application/octet-stream", msg.Attachments[0].ContentType)
	assert.Equal(t, []byte("hello world"), msg.Attachments[0].Content)
}

func TestParseEmptyAddressFields(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"Subject: No To",
		"Content-Type: text/plain",
		"",
		"Body",
	}, "\r\n"))

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Nil(t, msg.To)
}

func TestParseRawHeaders(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Headers",
		"X-Build-Id: 4711",
		"Content-Type: text/plain",
		"",
		"Body",
	}, "\r\n"))

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"4711"}, msg.RawHeaders["X-Build-Id"])
}

func TestParseAddressListFallback(t *testing.T) {
	t.Parallel()

	got := parseAddressList("not an address, also@not@valid")
	assert.Equal(t, []string{"not an address", "also@not@valid"}, got)
}
