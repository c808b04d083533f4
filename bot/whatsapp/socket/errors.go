package socket

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrTransport          = errors.New("transport error")
	ErrRecipientRejected  = errors.New("recipient rejected")
)

// ChannelError is returned by Send. Kind is one of the sentinels above;
// Status carries the service's HTTP-style code when it reported one.
type ChannelError struct {
	Kind   error
	Key    string
	Status int
	Reason string
	Err    error
}

func (e *ChannelError) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Kind, e.Key)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChannelError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func notFound(key ConnectionKey, reason string) error {
	return &ChannelError{Kind: ErrConnectionNotFound, Key: key.String(), Reason: reason}
}

func transport(key ConnectionKey, status int, reason string, err error) error {
	return &ChannelError{Kind: ErrTransport, Key: key.String(), Status: status, Reason: reason, Err: err}
}
