package entity

import "time"

type DiagnosticKind string

const (
	DiagnosticConversion DiagnosticKind = "conversion"
	DiagnosticDispatch   DiagnosticKind = "dispatch"
	DiagnosticAction     DiagnosticKind = "action"
)

type DiagnosticStage string

const (
	StageMessage DiagnosticStage = "message"
	StageInput   DiagnosticStage = "input"
	StageAction  DiagnosticStage = "action"
)

// Diagnostic records one skipped or failed item of a turn for operators.
type Diagnostic struct {
	SessionID string          `json:"session_id" bson:"session_id"`
	ClientID  string          `json:"client_id,omitempty" bson:"client_id,omitempty"`
	Kind      DiagnosticKind  `json:"kind" bson:"kind"`
	Stage     DiagnosticStage `json:"stage" bson:"stage"`
	ItemID    string          `json:"item_id,omitempty" bson:"item_id,omitempty"`
	Status    int             `json:"status,omitempty" bson:"status,omitempty"`
	Error     string          `json:"error" bson:"error"`
	Payload   string          `json:"payload,omitempty" bson:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}
