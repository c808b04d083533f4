package entity

import "time"

// SessionRecord is what the orchestrator persists after each transition.
type SessionRecord struct {
	ID    string
	State *SessionState
}

// Session is a persisted conversation as loaded from the store.
type Session struct {
	ID                string             `json:"id"`
	State             *SessionState      `json:"state"`
	Input             *Input             `json:"input,omitempty"`
	ClientSideActions []ClientSideAction `json:"client_side_actions,omitempty"`
	UpdatedAt         time.Time          `json:"updated_at"`
}
