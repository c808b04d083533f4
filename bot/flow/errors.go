package flow

import "fmt"

// ConfigError means the session has no usable channel identity. The turn
// is aborted and must not be retried as is.
type ConfigError struct {
	SessionID string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("session %s: channel not configured: %s", e.SessionID, e.Reason)
}

// PersistenceError stops auto-continuation; nothing is dispatched for the
// transition that failed to save.
type PersistenceError struct {
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session %s: save state: %v", e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
