package whatsapp

import (
	"context"

	"BotFlow/bot/whatsapp/socket"
)

type Core interface {
	OpenConnection(ctx context.Context, ownerID string) (socket.ConnectionInfo, error)
	ListConnections() []socket.ConnectionInfo
	CloseConnection(clientID string) error
	ReattachConnection(ctx context.Context, clientID string) error
}
