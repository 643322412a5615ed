package upload

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when no client id is configured for the asset host.
var ErrNotConfigured = errors.New("upload client id not configured")

// TransportError is a retriable failure: the request never produced a
// response, or the host asked the client to slow down.
type TransportError struct {
	Status     int // 0 when no response was received
	RetryAfter time.Duration
	Err        error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("rate limited by asset host (%d)", e.Status)
	}
	return fmt.Sprintf("asset host unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectionError is a non-retriable response from the asset host.
type RejectionError struct {
	Status int
	// Message is the host-supplied error text when FromServer is set.
	Message    string
	FromServer bool
}

func (e *RejectionError) Error() string {
	if e.FromServer && e.Message != "" {
		return e.Message
	}
	if e.Message != "" {
		return fmt.Sprintf("upload failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upload failed (%d)", e.Status)
}

// FailedError is returned once both phases are exhausted. Its message is the
// most specific one encountered across both phases.
type FailedError struct {
	Primary  error
	Fallback error
}

func (e *FailedError) Error() string {
	return mostSpecific(e.Fallback, e.Primary).Error()
}

func (e *FailedError) Unwrap() []error {
	return []error{e.Fallback, e.Primary}
}

// mostSpecific prefers a host-supplied rejection message, then any rejection,
// then the first error given.
func mostSpecific(errs ...error) error {
	var firstRejection error
	for _, err := range errs {
		var re *RejectionError
		if errors.As(err, &re) {
			if re.FromServer {
				return re
			}
			if firstRejection == nil {
				firstRejection = re
			}
		}
	}
	if firstRejection != nil {
		return firstRejection
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return errors.New("upload failed")
}
