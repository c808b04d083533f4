package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"BotFlow/bot/typing"
	"BotFlow/bot/whatsapp"
	"BotFlow/bot/whatsapp/socket"
	"BotFlow/entity"
)

type channel struct {
	key        socket.ConnectionKey
	recipients []string
}

// ExecuteTurn delivers one engine output: actions before bubbles, bubbles
// with their anchored actions, then the paced input prompt. A wait action
// that expects a dedicated reply re-enters the engine and the remainder of
// the current output is dropped.
func (o *Orchestrator) ExecuteTurn(ctx context.Context, t Turn) (*Report, error) {
	r := newRun(t)
	err := o.deliver(ctx, r, t)
	return r.report, err
}

// deliver runs t and every turn re-entered from its client side actions
// iteratively.
func (o *Orchestrator) deliver(ctx context.Context, r *run, t Turn) error {
	next := &t
	for next != nil {
		var err error
		if next, err = o.step(ctx, r, *next); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) channelOf(r *run, state *entity.SessionState) (channel, error) {
	if state == nil || !state.HasChannelIdentity() {
		return channel{}, &ConfigError{SessionID: r.sessionID, Reason: "missing whatsapp clientId or phone"}
	}
	key, err := socket.ParseConnectionKey(state.WhatsappComponent.ClientID)
	if err != nil {
		return channel{}, &ConfigError{SessionID: r.sessionID, Reason: err.Error()}
	}
	return channel{key: key, recipients: []string{state.WhatsappComponent.Phone}}, nil
}

// step delivers one transition. It returns the re-entered turn, if any.
func (o *Orchestrator) step(ctx context.Context, r *run, t Turn) (*Turn, error) {
	ch, err := o.channelOf(r, t.State)
	if err != nil {
		return nil, err
	}
	r.report.State, r.report.Input = t.State, t.Input

	for _, action := range t.ClientSideActions {
		if !action.RunsBeforeMessages() {
			continue
		}
		reenter, err := o.runAction(ctx, r, ch, action)
		if err != nil {
			return nil, err
		}
		if reenter {
			return o.reenter(ctx, r, t.State)
		}
	}

	lastMedia := false
	for _, msg := range t.Messages {
		r.emitted[msg.ID] = struct{}{}

		wire, err := whatsapp.ToWireMessage(msg)
		if err != nil {
			o.record(ctx, r, ch, conversionDiagnostic(msg.ID, entity.StageMessage, err), msg)
			continue
		}
		if err = o.send(ctx, r, ch, wire, msg.ID, entity.StageMessage, msg); err != nil {
			continue
		}
		lastMedia = wire.IsMedia()

		for _, action := range t.ClientSideActions {
			if action.LastBubbleBlockID != msg.ID {
				continue
			}
			reenter, err := o.runAction(ctx, r, ch, action)
			if err != nil {
				return nil, err
			}
			if reenter {
				return o.reenter(ctx, r, t.State)
			}
		}
	}

	if t.Input == nil {
		return nil, nil
	}
	prompts, err := whatsapp.ToWireMessages(t.Input)
	if err != nil {
		o.record(ctx, r, ch, conversionDiagnostic(t.Input.ID, entity.StageInput, err), t.Input)
		return nil, nil
	}
	for i := range prompts {
		wire := &prompts[i]
		if err = o.sleeper.Sleep(ctx, o.pacing(wire, lastMedia, t.State)); err != nil {
			return nil, err
		}
		if err = o.send(ctx, r, ch, wire, t.Input.ID, entity.StageInput, wire); err != nil {
			continue
		}
		lastMedia = wire.IsMedia()
	}
	return nil, nil
}

// pacing is the pause before an input prompt fragment: the post-media delay
// after an attachment, otherwise the typing time of the fragment itself.
func (o *Orchestrator) pacing(wire *whatsapp.WireMessage, lastMedia bool, state *entity.SessionState) time.Duration {
	if lastMedia {
		return o.afterMediaDelay
	}
	if wire.IsMedia() {
		return 0
	}
	d, ok := typing.Duration(wire.TypingContent(), state.TypingEmulation)
	if !ok {
		return 0
	}
	return d
}

// runAction executes one client side action and reports whether the flow
// must be re-entered without a reply.
func (o *Orchestrator) runAction(ctx context.Context, r *run, ch channel, action entity.ClientSideAction) (bool, error) {
	if action.Wait == nil {
		o.record(ctx, r, ch, entity.Diagnostic{
			Kind:   entity.DiagnosticAction,
			Stage:  entity.StageAction,
			ItemID: action.LastBubbleBlockID,
			Error:  "unsupported client side action: " + action.Kind(),
		}, action)
		return false, nil
	}
	wait := time.Duration(action.Wait.SecondsToWaitFor * float64(time.Second))
	if err := o.sleeper.Sleep(ctx, wait); err != nil {
		return false, err
	}
	return action.ExpectsDedicatedReply, nil
}

// reenter continues the flow after a wait that expects a dedicated reply.
// It returns no turn when a loop guard trips.
func (o *Orchestrator) reenter(ctx context.Context, r *run, state *entity.SessionState) (*Turn, error) {
	if o.exhausted(r) {
		return nil, nil
	}
	o.log.Debug("re-entering flow after client side action", slog.String("session_id", r.sessionID))
	resp, err := o.continueFlow(ctx, r, state, false)
	if err != nil {
		return nil, err
	}
	if o.repeats(r, resp) {
		return nil, nil
	}
	if err = o.persist(ctx, r, resp); err != nil {
		return nil, err
	}
	next := TurnFromResponse(r.sessionID, resp)
	return &next, nil
}

// exhausted reports whether the hop budget of the call is spent.
func (o *Orchestrator) exhausted(r *run) bool {
	if r.report.Hops < o.maxHops {
		return false
	}
	r.report.Guard = GuardHopLimit
	o.log.Warn("flow stopped: hop limit reached",
		slog.String("session_id", r.sessionID),
		slog.Int("hops", r.report.Hops))
	return true
}

// repeats reports whether resp starts with a message already emitted in
// this call, which means the engine is going around in a loop.
func (o *Orchestrator) repeats(r *run, resp *entity.ContinueChatResponse) bool {
	if len(resp.Messages) == 0 {
		return false
	}
	if _, dup := r.emitted[resp.Messages[0].ID]; !dup {
		return false
	}
	r.report.Guard = GuardRepeatedMessage
	o.log.Debug("flow stopped: repeated message",
		slog.String("session_id", r.sessionID),
		slog.String("message_id", resp.Messages[0].ID))
	return true
}

func (o *Orchestrator) continueFlow(ctx context.Context, r *run, state *entity.SessionState, auto bool) (*entity.ContinueChatResponse, error) {
	r.report.Hops++
	req := entity.ContinueChatRequest{
		Version: EngineVersion,
		State:   state.WithSessionID(r.sessionID),
	}
	if auto {
		req.StartTime = o.now().UnixMilli()
		req.MultipleWhatsappIntegration = true
	}
	resp, err := o.engine.Continue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("session %s: continue flow: %w", r.sessionID, err)
	}
	if resp == nil || resp.NewSessionState == nil {
		return nil, fmt.Errorf("session %s: engine returned no session state", r.sessionID)
	}
	return resp, nil
}

func (o *Orchestrator) persist(ctx context.Context, r *run, resp *entity.ContinueChatResponse) error {
	rec := entity.SessionRecord{ID: r.sessionID, State: resp.NewSessionState}
	err := o.store.SaveSession(ctx, rec, resp.Input, resp.Logs, resp.ClientSideActions, resp.VisitedEdges)
	if err != nil {
		return &PersistenceError{SessionID: r.sessionID, Err: err}
	}
	return nil
}

func (o *Orchestrator) send(ctx context.Context, r *run, ch channel, wire *whatsapp.WireMessage, itemID string, stage entity.DiagnosticStage, payload any) error {
	err := o.dispatcher.Send(ctx, ch.key, wire, ch.recipients, r.sessionID)
	if err != nil {
		d := entity.Diagnostic{
			Kind:   entity.DiagnosticDispatch,
			Stage:  stage,
			ItemID: itemID,
			Error:  err.Error(),
		}
		var chErr *socket.ChannelError
		if errors.As(err, &chErr) {
			d.Status = chErr.Status
		}
		o.record(ctx, r, ch, d, payload)
		return err
	}
	r.report.Sent = append(r.report.Sent, SentMessage{ItemID: itemID, Stage: stage, Wire: wire})
	return nil
}

func conversionDiagnostic(itemID string, stage entity.DiagnosticStage, err error) entity.Diagnostic {
	return entity.Diagnostic{
		Kind:   entity.DiagnosticConversion,
		Stage:  stage,
		ItemID: itemID,
		Error:  err.Error(),
	}
}

func (o *Orchestrator) record(ctx context.Context, r *run, ch channel, d entity.Diagnostic, payload any) {
	d.SessionID = r.sessionID
	d.ClientID = ch.key.String()
	d.CreatedAt = o.now()
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			d.Payload = string(data)
		}
	}
	r.report.Diagnostics = append(r.report.Diagnostics, d)

	o.log.Warn("turn item skipped",
		slog.String("session_id", d.SessionID),
		slog.String("kind", string(d.Kind)),
		slog.String("stage", string(d.Stage)),
		slog.String("item_id", d.ItemID),
		slog.Int("status", d.Status),
		slog.String("error", d.Error),
	)
	if o.sink != nil {
		o.sink.Diagnostic(ctx, d)
	}
}
