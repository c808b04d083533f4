package flow

import (
	"context"
	"log/slog"
)

// ExecuteUntilUserInputRequired delivers t and, while the flow rests on a
// channel integration block without awaiting input, keeps continuing it
// with no reply. Each new transition is persisted before it is delivered.
//
// The loop stops when input is awaited or the flow ends. It also stops when
// the engine repeats a message already emitted in this call, when a block
// comes around twice, or when the hop budget is spent.
func (o *Orchestrator) ExecuteUntilUserInputRequired(ctx context.Context, t Turn) (*Report, error) {
	r := newRun(t)
	if err := o.deliver(ctx, r, t); err != nil {
		return r.report, err
	}
	if r.report.Input != nil {
		return r.report, nil
	}

	state := r.report.State
	if state == nil || state.CurrentBlockID == "" {
		return r.report, nil
	}
	block, err := state.CurrentBlock()
	if err != nil {
		return r.report, err
	}
	visited := map[string]struct{}{block.ID: {}}

	for block.IsChannelIntegration() {
		if o.exhausted(r) {
			return r.report, nil
		}
		resp, err := o.continueFlow(ctx, r, state, true)
		if err != nil {
			return r.report, err
		}
		if o.repeats(r, resp) {
			return r.report, nil
		}
		if err = o.persist(ctx, r, resp); err != nil {
			return r.report, err
		}
		if err = o.deliver(ctx, r, TurnFromResponse(r.sessionID, resp)); err != nil {
			return r.report, err
		}
		if r.report.Input != nil {
			return r.report, nil
		}

		state = r.report.State
		if state.CurrentBlockID == "" {
			return r.report, nil
		}
		if _, seen := visited[state.CurrentBlockID]; seen {
			r.report.Guard = GuardRevisitedBlock
			o.log.Debug("auto-continuation stopped: block revisited",
				slog.String("session_id", r.sessionID),
				slog.String("block_id", state.CurrentBlockID))
			return r.report, nil
		}
		if block, err = state.CurrentBlock(); err != nil {
			return r.report, err
		}
		visited[block.ID] = struct{}{}
	}
	return r.report, nil
}
