package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"BotFlow/bot/whatsapp"
	"BotFlow/bot/whatsapp/socket"
	"BotFlow/entity"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/service/lanes"
)

const listenerTimeout = 30 * time.Second

func (c *Core) OpenConnection(ctx context.Context, ownerID string) (socket.ConnectionInfo, error) {
	if c.channels == nil {
		return socket.ConnectionInfo{}, fmt.Errorf("channels: %w", ErrNotConfigured)
	}
	key, err := c.channels.Open(ctx, ownerID)
	if err != nil {
		return socket.ConnectionInfo{}, err
	}
	return c.channels.Status(key)
}

// ReattachConnection re-dials an existing pairing by its client id.
func (c *Core) ReattachConnection(ctx context.Context, clientID string) error {
	if c.channels == nil {
		return fmt.Errorf("channels: %w", ErrNotConfigured)
	}
	key, err := socket.ParseConnectionKey(clientID)
	if err != nil {
		return err
	}
	return c.channels.Attach(ctx, key)
}

func (c *Core) CloseConnection(clientID string) error {
	if c.channels == nil {
		return fmt.Errorf("channels: %w", ErrNotConfigured)
	}
	key, err := socket.ParseConnectionKey(clientID)
	if err != nil {
		return err
	}
	return c.channels.Close(key)
}

func (c *Core) ListConnections() []socket.ConnectionInfo {
	if c.channels == nil {
		return nil
	}
	return c.channels.List()
}

// ConnectionStatus broadcasts pairing progress and remembers the paired
// phone once the connection is ready.
func (c *Core) ConnectionStatus(key socket.ConnectionKey, event socket.StatusEvent) {
	info := socket.ConnectionInfo{
		ClientID: key.String(),
		OwnerID:  key.OwnerID,
		Status:   event.Status,
		Phone:    event.Phone,
		QR:       event.QR,
	}
	if c.hub != nil {
		c.hub.BroadcastStatus(info)
	}
	if event.Status != socket.StatusReady || c.repo == nil {
		return
	}

	creds := &entity.WhatsappCredentials{
		ID:   key.String(),
		Type: entity.CredentialsTypeWhatsapp,
		Data: entity.WhatsappCredentialsData{
			ClientID:    key.String(),
			PhoneNumber: event.Phone,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()
	if err := c.repo.SaveCredentials(ctx, creds); err != nil {
		c.log.With(
			sl.Err(err),
			slog.String("client_id", key.String()),
		).Warn("save whatsapp credentials")
	}
}

// InboundMessage routes a user message to the session waiting on that
// channel and phone. Messages of one sender are handled in arrival order.
func (c *Core) InboundMessage(key socket.ConnectionKey, msg whatsapp.InboundMessage) {
	log := c.log.With(
		slog.String("client_id", key.String()),
		slog.String("from", msg.From),
	)
	if c.queue == nil {
		log.Warn("inbound message dropped: turn queue not set")
		return
	}
	err := c.queue.Enqueue(lanes.Job{
		SessionID: "inbound:" + key.String() + ":" + msg.From,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, listenerTimeout)
			defer cancel()
			return c.routeInbound(ctx, key, msg)
		},
	})
	if err != nil {
		log.With(sl.Err(err)).Error("enqueue inbound message")
	}
}

func (c *Core) routeInbound(ctx context.Context, key socket.ConnectionKey, msg whatsapp.InboundMessage) error {
	if c.repo == nil {
		return ErrNotConfigured
	}
	log := c.log.With(
		slog.String("client_id", key.String()),
		slog.String("from", msg.From),
	)

	session, err := c.repo.FindSessionByChannel(ctx, key.String(), msg.From)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		log.Info("no session for inbound message")
		return nil
	}

	reply, err := whatsapp.ReplyFromInbound(msg, session.Input)
	if err != nil {
		c.Diagnostic(ctx, entity.Diagnostic{
			SessionID: session.ID,
			ClientID:  key.String(),
			Kind:      entity.DiagnosticConversion,
			Stage:     entity.StageInput,
			ItemID:    msg.ID,
			Error:     err.Error(),
			CreatedAt: time.Now(),
		})
		return nil
	}
	return c.HandleReply(session.ID, &reply)
}
