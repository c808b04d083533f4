package chat

import (
	"context"

	"BotFlow/entity"
)

type Core interface {
	HandleReply(sessionID string, reply *string) error
	GetSession(ctx context.Context, sessionID string) (*entity.Session, error)
	ListDiagnostics(ctx context.Context, sessionID string, limit int64) ([]entity.Diagnostic, error)
}
