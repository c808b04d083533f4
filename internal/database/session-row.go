package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"BotFlow/entity"
)

// SessionRow is the stored form of a session shared by the stores. State and
// pending items are kept as JSON text so engine-owned members survive.
type SessionRow struct {
	ID                string    `bson:"_id"`
	State             string    `bson:"state"`
	Input             string    `bson:"input,omitempty"`
	ClientSideActions string    `bson:"client_side_actions,omitempty"`
	ClientID          string    `bson:"client_id,omitempty"`
	Phone             string    `bson:"phone,omitempty"`
	CurrentBlockID    string    `bson:"current_block_id,omitempty"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func NewSessionRow(rec entity.SessionRecord, input *entity.Input, actions []entity.ClientSideAction, now time.Time) (*SessionRow, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("session id is empty")
	}
	if rec.State == nil {
		return nil, fmt.Errorf("session %s: state is nil", rec.ID)
	}
	state, err := json.Marshal(rec.State)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	row := &SessionRow{
		ID:             rec.ID,
		State:          string(state),
		CurrentBlockID: rec.State.CurrentBlockID,
		UpdatedAt:      now.UTC(),
	}
	if wc := rec.State.WhatsappComponent; wc != nil {
		row.ClientID, row.Phone = wc.ClientID, wc.Phone
	}
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode input: %w", err)
		}
		row.Input = string(data)
	}
	if len(actions) > 0 {
		data, err := json.Marshal(actions)
		if err != nil {
			return nil, fmt.Errorf("encode actions: %w", err)
		}
		row.ClientSideActions = string(data)
	}
	return row, nil
}

func (r *SessionRow) Session() (*entity.Session, error) {
	s := &entity.Session{ID: r.ID, UpdatedAt: r.UpdatedAt}
	if err := json.Unmarshal([]byte(r.State), &s.State); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if r.Input != "" {
		if err := json.Unmarshal([]byte(r.Input), &s.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
	}
	if r.ClientSideActions != "" {
		if err := json.Unmarshal([]byte(r.ClientSideActions), &s.ClientSideActions); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
	}
	return s, nil
}
