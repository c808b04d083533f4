// Package flow delivers engine output over the WhatsApp push channel and
// drives the flow forward across channel integration blocks.
package flow

import (
	"context"
	"log/slog"
	"time"

	"BotFlow/bot/whatsapp"
	"BotFlow/bot/whatsapp/socket"
	"BotFlow/entity"
	"BotFlow/internal/lib/sl"
)

const (
	// EngineVersion is sent with every continuation request.
	EngineVersion          = "2"
	defaultAfterMediaDelay = 5 * time.Second
	defaultMaxHops         = 25
)

// Continuer calls the flow continuation engine.
type Continuer interface {
	Continue(ctx context.Context, req entity.ContinueChatRequest) (*entity.ContinueChatResponse, error)
}

// Saver persists one state transition.
type Saver interface {
	SaveSession(ctx context.Context, rec entity.SessionRecord, input *entity.Input, logs []entity.ChatLog, actions []entity.ClientSideAction, edges []entity.VisitedEdge) error
}

// Dispatcher sends one wire message over a channel connection.
type Dispatcher interface {
	Send(ctx context.Context, key socket.ConnectionKey, msg *whatsapp.WireMessage, recipients []string, sessionID string) error
}

// DiagnosticSink receives every per-item failure of a turn.
type DiagnosticSink interface {
	Diagnostic(ctx context.Context, d entity.Diagnostic)
}

// Turn is one engine output to deliver.
type Turn struct {
	SessionID         string
	State             *entity.SessionState
	Messages          []entity.Message
	Input             *entity.Input
	ClientSideActions []entity.ClientSideAction
}

// TurnFromResponse builds the turn for an engine response.
func TurnFromResponse(sessionID string, resp *entity.ContinueChatResponse) Turn {
	return Turn{
		SessionID:         sessionID,
		State:             resp.NewSessionState,
		Messages:          resp.Messages,
		Input:             resp.Input,
		ClientSideActions: resp.ClientSideActions,
	}
}

type Orchestrator struct {
	engine          Continuer
	store           Saver
	dispatcher      Dispatcher
	sink            DiagnosticSink
	sleeper         Sleeper
	afterMediaDelay time.Duration
	maxHops         int
	now             func() time.Time
	log             *slog.Logger
}

func New(engine Continuer, store Saver, dispatcher Dispatcher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		engine:          engine,
		store:           store,
		dispatcher:      dispatcher,
		sleeper:         timerSleeper{},
		afterMediaDelay: defaultAfterMediaDelay,
		maxHops:         defaultMaxHops,
		now:             time.Now,
		log:             log.With(sl.Module("flow")),
	}
}

func (o *Orchestrator) SetDiagnosticSink(sink DiagnosticSink) {
	o.sink = sink
}

func (o *Orchestrator) SetSleeper(s Sleeper) {
	o.sleeper = s
}

func (o *Orchestrator) SetAfterMediaDelay(d time.Duration) {
	o.afterMediaDelay = d
}

// SetMaxHops bounds the engine calls one orchestration call may make across
// re-entries and auto-continuation. Values below one keep the default.
func (o *Orchestrator) SetMaxHops(n int) {
	if n > 0 {
		o.maxHops = n
	}
}
