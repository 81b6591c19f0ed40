package message

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shineum/mail-notifier/internal/email"
)

// attachmentContentType is used for every attachment; files are sent as
// opaque binary.
const attachmentContentType = "application/octet-stream"

// LoadAttachment reads the file at path into an Attachment named after its
// base name. A missing file yields *AttachmentNotFoundError.
func LoadAttachment(path string) (*email.Attachment, error) {
	data, name, err := readLocal(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &AttachmentNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("failed to read attachment %s: %w", name, stripPath(err))
	}

	return &email.Attachment{
		Filename:    name,
		ContentType: attachmentContentType,
		Content:     data,
	}, nil
}

// readLocal reads a whole file and returns it with its display name. The
// path is used as given; an empty path fails as not found.
func readLocal(path string) ([]byte, string, error) {
	name := displayName(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, name, err
	}
	return data, name, nil
}

// displayName strips leading directories so full paths never appear in the
// outgoing message or in errors.
func displayName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// stripPath drops the path from *fs.PathError, keeping only the cause.
func stripPath(err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return perr.Err
	}
	return err
}
