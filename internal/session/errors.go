package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveRecord means there is neither a selected interaction nor a draft.
	ErrNoActiveRecord = errors.New("no active record: select an interaction or start a new one")

	// ErrMissingLogID means a record without a backend id was offered to history.
	ErrMissingLogID = errors.New("record has no log id")

	// ErrRequestInFlight means a submit was attempted while another is pending.
	ErrRequestInFlight = errors.New("a request is already in flight")

	// ErrEmptyText means the text left nothing to send after cleaning.
	ErrEmptyText = errors.New("text is empty")
)

// InvalidFieldError is returned when an edit names an unknown field or carries an invalid value.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid field %q", e.Field)
	}
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}
