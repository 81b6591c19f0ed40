package stdout

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mail-notifier/internal/config"
	"github.com/shineum/mail-notifier/internal/email"
	"github.com/shineum/mail-notifier/internal/message"
)

func build(t *testing.T, content *email.Content, attachments ...string) *message.Composed {
	t.Helper()
	cfg, err := config.Resolve(map[string]string{
		"USERNAME": "u",
		"PASSWORD": "p",
		"FROM":     "CI <ci@example.com>",
		"TO":       "dev@example.com",
		"HOST":     "smtp.example.com",
	})
	require.NoError(t, err)
	cfg.Attachments = attachments

	msg, err := message.Build(cfg, content)
	require.NoError(t, err)
	return msg
}

func TestSend_Summary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	msg := build(t, &email.Content{Subject: "Nightly build", PlainBody: "all green"})
	require.NoError(t, p.Send(context.Background(), msg))

	output := buf.String()
	assert.Contains(t, output, "From: CI <ci@example.com>")
	assert.Contains(t, output, "To: dev@example.com")
	assert.Contains(t, output, "Subject: Nightly build")
	assert.Contains(t, output, "Message-ID: "+msg.MessageID)
	assert.Contains(t, output, "Body (text/plain):\nall green")
	assert.Contains(t, output, "Body (text/html):\nall green")
	assert.NotContains(t, output, "Attachments:")
}

func TestSend_WithAttachments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(report, bytes.Repeat([]byte{0x25}, 2048), 0o600))
	logFile := filepath.Join(dir, "build.log")
	require.NoError(t, os.WriteFile(logFile, []byte("ok"), 0o600))

	var buf bytes.Buffer
	msg := build(t, &email.Content{Subject: "Artifacts", PlainBody: "see attached"}, report, logFile)
	require.NoError(t, NewWithWriter(&buf).Send(context.Background(), msg))

	assert.Contains(t, buf.String(), "Attachments: report.pdf (2.0 KB), build.log (2 B)")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestSend_WriteError(t *testing.T) {
	t.Parallel()

	msg := build(t, &email.Content{Subject: "x", PlainBody: "y"})
	err := NewWithWriter(failingWriter{}).Send(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed pipe")
}

func TestName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "stdout", New().Name())
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5242880, "5.0 MB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes), "formatSize(%d)", tt.bytes)
	}
}
