package flow

import (
	"BotFlow/bot/whatsapp"
	"BotFlow/entity"
)

// SentMessage is one wire message the channel acknowledged. ItemID is the
// bubble id, or the input id for prompt fragments.
type SentMessage struct {
	ItemID string
	Stage  entity.DiagnosticStage
	Wire   *whatsapp.WireMessage
}

// LoopGuard names the guard that ended an orchestration call early.
type LoopGuard string

const (
	GuardRepeatedMessage LoopGuard = "repeated_message"
	GuardRevisitedBlock  LoopGuard = "revisited_block"
	GuardHopLimit        LoopGuard = "hop_limit"
)

// Report summarizes one orchestration call.
type Report struct {
	Sent        []SentMessage
	Diagnostics []entity.Diagnostic
	// State and Input are those of the last delivered transition.
	State *entity.SessionState
	Input *entity.Input
	// Hops counts engine calls made by the orchestrator itself.
	Hops int
	// Guard is empty unless a loop guard stopped the call.
	Guard LoopGuard
}

// run is the bookkeeping shared by every transition of one call.
type run struct {
	sessionID string
	report    *Report
	emitted   map[string]struct{}
}

func newRun(t Turn) *run {
	id := t.SessionID
	if id == "" && t.State != nil {
		id = t.State.SessionID
	}
	return &run{
		sessionID: id,
		report:    &Report{State: t.State, Input: t.Input},
		emitted:   make(map[string]struct{}),
	}
}
