package whatsapp

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRepresentation marks variants the channel cannot display.
	ErrNoRepresentation = errors.New("no whatsapp representation")
	// ErrMalformed marks content that is invalid for its declared variant.
	ErrMalformed = errors.New("malformed content")
)

// ConversionError explains why a message or input was not converted.
type ConversionError struct {
	Kind   error
	Type   string
	ID     string
	Reason string
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("%s %q (%s)", e.Kind, e.ID, e.Type)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Kind
}

func noRepresentation(typ, id string) error {
	return &ConversionError{Kind: ErrNoRepresentation, Type: typ, ID: id}
}

func malformed(typ, id, reason string) error {
	return &ConversionError{Kind: ErrMalformed, Type: typ, ID: id, Reason: reason}
}
