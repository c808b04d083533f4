package core

import (
	"context"
	"fmt"
	"log/slog"

	"BotFlow/bot/flow"
	"BotFlow/entity"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/service/lanes"
)

// HandleReply queues a turn for the session. A nil reply continues the
// flow without user input. The turn itself runs asynchronously.
func (c *Core) HandleReply(sessionID string, reply *string) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}
	if c.queue == nil {
		return fmt.Errorf("turn queue: %w", ErrNotConfigured)
	}
	return c.queue.Enqueue(lanes.Job{
		SessionID: sessionID,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, c.turnTimeout)
			defer cancel()
			_, err := c.RunTurn(ctx, sessionID, reply)
			return err
		},
	})
}

// RunTurn executes one user turn in the caller's goroutine: continue the
// engine with the reply, persist the transition, then deliver until the
// flow needs the user again.
func (c *Core) RunTurn(ctx context.Context, sessionID string, reply *string) (*flow.Report, error) {
	if c.repo == nil || c.engine == nil || c.runner == nil {
		return nil, ErrNotConfigured
	}
	log := c.log.With(slog.String("session_id", sessionID))

	if c.locker != nil {
		release, err := c.locker.Acquire(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	session, err := c.repo.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.State == nil {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}

	resp, err := c.engine.Continue(ctx, entity.ContinueChatRequest{
		Message: reply,
		Version: flow.EngineVersion,
		State:   session.State,
	})
	if err != nil {
		return nil, fmt.Errorf("continue chat: %w", err)
	}

	err = c.repo.SaveSession(ctx, entity.SessionRecord{ID: sessionID, State: resp.NewSessionState},
		resp.Input, resp.Logs, resp.ClientSideActions, resp.VisitedEdges)
	if err != nil {
		return nil, &flow.PersistenceError{SessionID: sessionID, Err: err}
	}

	report, err := c.runner.ExecuteUntilUserInputRequired(ctx, flow.TurnFromResponse(sessionID, resp))
	if err != nil {
		log.With(sl.Err(err)).Error("execute turn")
		return report, err
	}

	log.With(
		slog.Int("sent", len(report.Sent)),
		slog.Int("diagnostics", len(report.Diagnostics)),
		slog.Int("hops", report.Hops),
		slog.String("guard", string(report.Guard)),
	).Debug("turn delivered")
	return report, nil
}

// GetSession returns the persisted session or ErrSessionNotFound.
func (c *Core) GetSession(ctx context.Context, sessionID string) (*entity.Session, error) {
	if c.repo == nil {
		return nil, ErrNotConfigured
	}
	session, err := c.repo.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (c *Core) ListDiagnostics(ctx context.Context, sessionID string, limit int64) ([]entity.Diagnostic, error) {
	if c.repo == nil {
		return nil, ErrNotConfigured
	}
	return c.repo.ListDiagnostics(ctx, sessionID, limit)
}

// Diagnostic stores and broadcasts a failed item of a turn.
func (c *Core) Diagnostic(ctx context.Context, d entity.Diagnostic) {
	if c.repo != nil {
		if err := c.repo.SaveDiagnostic(ctx, d); err != nil {
			c.log.With(sl.Err(err)).Error("save diagnostic")
		}
	}
	if c.hub != nil {
		c.hub.BroadcastDiagnostic(d)
	}
}
