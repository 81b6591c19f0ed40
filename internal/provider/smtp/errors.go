package smtp

import "fmt"

// TransportError is returned for any failure while connecting, greeting,
// upgrading to TLS, authenticating or transmitting. The cause is kept for
// logs only; callers are not expected to branch on it.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "failed to send email: check your configuration"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeliveryNotConfirmedError is returned when the message was transmitted but
// the confirmation probe did not come back with 250.
type DeliveryNotConfirmedError struct {
	Recipient string

	// Code is the observed status code, or 0 if no response was read.
	Code     int
	Response string
}

func (e *DeliveryNotConfirmedError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("failed to send email to %s: no response to confirmation (%s)", e.Recipient, e.Response)
	}
	return fmt.Sprintf("failed to send email to %s: response %d %s", e.Recipient, e.Code, e.Response)
}
