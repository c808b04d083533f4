package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"BotFlow/bot/whatsapp"
	"BotFlow/internal/lib/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20
)

// connection owns one websocket to the socket service.
type connection struct {
	key  ConnectionKey
	conn *websocket.Conn
	log  *slog.Logger

	// sendMu is held from write until ack so frames on one key stay ordered.
	sendMu  sync.Mutex
	writeMu sync.Mutex

	mu      sync.Mutex
	status  Status
	phone   string
	qr      string
	pending map[string]chan inboundFrame

	done      chan struct{}
	closeOnce sync.Once

	onStatus  func(ConnectionKey, StatusEvent)
	onMessage func(ConnectionKey, whatsapp.InboundMessage)
}

func newConnection(key ConnectionKey, conn *websocket.Conn, log *slog.Logger) *connection {
	return &connection{
		key:     key,
		conn:    conn,
		log:     log.With(slog.String("client_id", key.String())),
		status:  StatusConnecting,
		pending: make(map[string]chan inboundFrame),
		done:    make(chan struct{}),
	}
}

func (c *connection) start() {
	go c.readPump()
	go c.pingLoop()
}

func (c *connection) info() ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionInfo{
		ClientID: c.key.String(),
		OwnerID:  c.key.OwnerID,
		Status:   c.status,
		Phone:    c.phone,
		QR:       c.qr,
	}
}

func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readPump dispatches acks to waiting senders and forwards status and
// message events. It marks the connection closed when the socket drops.
func (c *connection) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("socket read", sl.Err(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame inboundFrame
		if err = json.Unmarshal(data, &frame); err != nil {
			c.log.Debug("undecodable frame", sl.Err(err))
			continue
		}
		c.handle(frame)
	}
}

func (c *connection) handle(frame inboundFrame) {
	switch frame.Event {
	case eventAck:
		c.mu.Lock()
		ch, ok := c.pending[frame.RequestID]
		c.mu.Unlock()
		if !ok {
			return
		}
		// a request takes one ack; extras must not stall the read loop
		select {
		case ch <- frame:
		default:
			c.log.Debug("duplicate ack dropped", slog.String("request_id", frame.RequestID))
		}

	case eventStatus:
		event := StatusEvent{
			ClientID: c.key.String(),
			Status:   Status(frame.Status),
			QR:       frame.QR,
			Phone:    frame.Phone,
		}
		c.mu.Lock()
		c.status = event.Status
		c.qr = event.QR
		if event.Phone != "" {
			c.phone = event.Phone
		}
		c.mu.Unlock()
		c.log.Debug("status", slog.String("status", frame.Status))
		if c.onStatus != nil {
			c.onStatus(c.key, event)
		}

	case eventMessage:
		if frame.Message == nil {
			return
		}
		if c.onMessage != nil {
			c.onMessage(c.key, *frame.Message)
		}

	default:
		c.log.Debug("unknown event", slog.String("event", frame.Event))
	}
}

func (c *connection) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug("ping failed", sl.Err(err))
				c.shutdown()
				return
			}
		}
	}
}

// send writes one frame and waits for its ack, the timeout or disconnect.
func (c *connection) send(ctx context.Context, timeout time.Duration, frame outboundFrame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed() {
		return notFound(c.key, "connection closed")
	}
	if st := c.info().Status; st != StatusReady {
		return notFound(c.key, "not authenticated: "+string(st))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	frame.RequestID = uuid.NewString()
	ack := make(chan inboundFrame, 1)
	c.mu.Lock()
	c.pending[frame.RequestID] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, frame.RequestID)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(frame)
	if err != nil {
		return transport(c.key, 0, "encode frame", err)
	}
	c.writeMu.Lock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return transport(c.key, 0, "write frame", err)
	}

	select {
	case reply := <-ack:
		return c.ackResult(reply)
	case <-ctx.Done():
		return transport(c.key, 0, "no ack", ctx.Err())
	case <-c.done:
		return transport(c.key, 0, "connection closed before ack", nil)
	}
}

func (c *connection) ackResult(reply inboundFrame) error {
	switch reply.Status {
	case ackOK:
		return nil
	case ackRejected:
		return &ChannelError{
			Kind:   ErrRecipientRejected,
			Key:    c.key.String(),
			Status: reply.Code,
			Reason: reply.Error,
		}
	}
	return transport(c.key, reply.Code, reply.Error, nil)
}

func (c *connection) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.status = StatusClosed
		c.mu.Unlock()
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = c.conn.Close()

		if c.onStatus != nil {
			c.onStatus(c.key, StatusEvent{ClientID: c.key.String(), Status: StatusClosed})
		}
	})
}
