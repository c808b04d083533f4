package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBlockNotFound = errors.New("block not found")

// WhatsappComponent is the push channel identity bound to a session.
type WhatsappComponent struct {
	ClientID string `json:"clientId,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// TypingEmulation mirrors the flow settings. Nil fields fall back to defaults.
type TypingEmulation struct {
	Enabled                  *bool    `json:"enabled,omitempty"`
	Speed                    *float64 `json:"speed,omitempty"`
	MaxDelay                 *float64 `json:"maxDelay,omitempty"`
	IsDisabledOnFirstMessage *bool    `json:"isDisabledOnFirstMessage,omitempty"`
}

// TypebotInQueue is one flow graph on the sub-flow stack.
type TypebotInQueue struct {
	EdgeIDToTriggerWhenDone string  `json:"edgeIdToTriggerWhenDone,omitempty"`
	Typebot                 Typebot `json:"typebot"`
}

// SessionState is the resumable state of one conversation. Everything the
// engine stores beyond the modeled fields (variables, result, theme...) is
// carried opaquely.
type SessionState struct {
	SessionID         string             `json:"sessionId,omitempty"`
	CurrentBlockID    string             `json:"currentBlockId,omitempty"`
	TypebotsQueue     []TypebotInQueue   `json:"typebotsQueue"`
	WhatsappComponent *WhatsappComponent `json:"whatsappComponent,omitempty"`
	TypingEmulation   *TypingEmulation   `json:"typingEmulation,omitempty"`

	extra rawFields
}

type sessionStateAlias SessionState

func (s *SessionState) UnmarshalJSON(data []byte) error {
	var alias sessionStateAlias
	extra, err := decodeWithRaw(data, &alias)
	if err != nil {
		return err
	}
	*s = SessionState(alias)
	s.extra = extra
	return nil
}

func (s SessionState) MarshalJSON() ([]byte, error) {
	return encodeWithRaw(sessionStateAlias(s), s.extra)
}

// Extra returns an engine-owned member that is not modeled, if present.
func (s *SessionState) Extra(key string) ([]byte, bool) {
	v, ok := s.extra[key]
	return v, ok
}

// WithSessionID returns a shallow copy bound to the given session id.
func (s *SessionState) WithSessionID(id string) *SessionState {
	next := *s
	next.SessionID = id
	return &next
}

// ActiveTypebot returns the graph at the top of the sub-flow stack.
func (s *SessionState) ActiveTypebot() (*Typebot, error) {
	if len(s.TypebotsQueue) == 0 {
		return nil, fmt.Errorf("session %s: empty typebots queue", s.SessionID)
	}
	return &s.TypebotsQueue[0].Typebot, nil
}

// CurrentBlock resolves CurrentBlockID inside the active graph.
func (s *SessionState) CurrentBlock() (*Block, error) {
	if s.CurrentBlockID == "" {
		return nil, fmt.Errorf("session %s: no current block: %w", s.SessionID, ErrBlockNotFound)
	}
	typebot, err := s.ActiveTypebot()
	if err != nil {
		return nil, err
	}
	block, ok := typebot.BlockByID(s.CurrentBlockID)
	if !ok {
		return nil, fmt.Errorf("session %s: block %s: %w", s.SessionID, s.CurrentBlockID, ErrBlockNotFound)
	}
	return block, nil
}

// HasChannelIdentity reports whether the push channel is fully configured.
func (s *SessionState) HasChannelIdentity() bool {
	return s.WhatsappComponent != nil && s.WhatsappComponent.ClientID != "" && s.WhatsappComponent.Phone != ""
}

// Clone returns a deep copy, so the engine can be handed a state it may not
// mutate in place.
func (s *SessionState) Clone() (*SessionState, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone session state: %w", err)
	}
	var out SessionState
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone session state: %w", err)
	}
	return &out, nil
}
