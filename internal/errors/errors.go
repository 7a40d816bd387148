// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when a record id is unknown.
type ErrRecordNotFound struct {
	RecordID string
}

func (e *ErrRecordNotFound) Error() string {
	return fmt.Sprintf("record with ID %s not found", e.RecordID)
}

// Helper constructor
func NewRecordNotFound(id string) error {
	return &ErrRecordNotFound{RecordID: id}
}

// IsRecordNotFound reports whether err wraps an ErrRecordNotFound.
func IsRecordNotFound(err error) bool {
	var nf *ErrRecordNotFound
	return errors.As(err, &nf)
}

var (
	// ErrNoRecipients means the record's email field holds no usable address.
	ErrNoRecipients = errors.New("no email")
	// ErrSweepInProgress is returned when a catch-up sweep is already running.
	ErrSweepInProgress = errors.New("catch-up sweep already in progress")
	// ErrUnauthorized is returned for a missing or wrong admin secret.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDeliveryFailed wraps a transport failure on an immediate send.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrInvalidInput marks a request payload that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotConfigured flags a missing required setting (secret, transport).
	ErrNotConfigured = errors.New("not configured")
)
