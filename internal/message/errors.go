package message

import (
	"errors"
	"fmt"
)

// ErrEmptyBody is returned when neither a plain body nor an HTML body file is
// supplied.
var ErrEmptyBody = errors.New("BODY_PLAIN or BODY_HTML variable not set")

// AttachmentNotFoundError reports an attachment file that does not exist.
// Name is the base name only.
type AttachmentNotFoundError struct {
	Name string
}

func (e *AttachmentNotFoundError) Error() string {
	return fmt.Sprintf("failed to add an attachment: no such file %s", e.Name)
}

// HTMLBodyNotFoundError reports an HTML body file that does not exist.
// Name is the base name only.
type HTMLBodyNotFoundError struct {
	Name string
}

func (e *HTMLBodyNotFoundError) Error() string {
	return fmt.Sprintf("unable to open HTML body file %s", e.Name)
}
