package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"BotFlow/bot/whatsapp"
	"BotFlow/internal/lib/sl"
)

// Registry maps connection keys to live socket connections. Sends on
// distinct keys run in parallel; sends on one key are serialized.
type Registry struct {
	socketURL   string
	dialer      *websocket.Dialer
	sendTimeout time.Duration
	log         *slog.Logger
	now         func() time.Time

	mu       sync.RWMutex
	conns    map[ConnectionKey]*connection
	reserved map[ConnectionKey]struct{}

	statusListener  StatusListener
	messageListener MessageListener
}

func NewRegistry(socketURL string, dialTimeout, sendTimeout time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		socketURL:   socketURL,
		dialer:      &websocket.Dialer{HandshakeTimeout: dialTimeout},
		sendTimeout: sendTimeout,
		log:         log.With(sl.Module("whatsapp.socket")),
		now:         time.Now,
		conns:       make(map[ConnectionKey]*connection),
		reserved:    make(map[ConnectionKey]struct{}),
	}
}

// SetStatusListener must be called before connections are opened.
// Listeners run on the connection's read loop and must not block.
func (r *Registry) SetStatusListener(l StatusListener) {
	r.statusListener = l
}

func (r *Registry) SetMessageListener(l MessageListener) {
	r.messageListener = l
}

// Open starts a new pairing for the owner and returns its key.
func (r *Registry) Open(ctx context.Context, ownerID string) (ConnectionKey, error) {
	if ownerID == "" {
		return ConnectionKey{}, fmt.Errorf("owner id is empty")
	}
	key := r.reserve(NewConnectionKey(ownerID, r.now()))
	defer func() {
		r.mu.Lock()
		delete(r.reserved, key)
		r.mu.Unlock()
	}()

	if err := r.Attach(ctx, key); err != nil {
		return ConnectionKey{}, err
	}
	return key, nil
}

// reserve claims the first free epoch at or after key for a pairing that is
// still dialing.
func (r *Registry) reserve(key ConnectionKey) ConnectionKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		_, connected := r.conns[key]
		_, dialing := r.reserved[key]
		if !connected && !dialing {
			break
		}
		key.Epoch++
	}
	r.reserved[key] = struct{}{}
	return key
}

// Attach dials the service for an existing key, replacing a closed
// connection. It is a no-op when the key is already connected.
func (r *Registry) Attach(ctx context.Context, key ConnectionKey) error {
	r.mu.RLock()
	existing, ok := r.conns[key]
	r.mu.RUnlock()
	if ok && !existing.closed() {
		return nil
	}

	target, err := r.endpoint(key)
	if err != nil {
		return err
	}
	ws, resp, err := r.dialer.DialContext(ctx, target, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return transport(key, status, "dial", err)
	}

	c := newConnection(key, ws, r.log)
	c.onStatus = r.forwardStatus
	c.onMessage = r.forwardMessage

	r.mu.Lock()
	if prev, ok := r.conns[key]; ok && !prev.closed() {
		r.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	r.conns[key] = c
	r.mu.Unlock()

	c.start()
	r.log.Info("connection attached", slog.String("client_id", key.String()))
	return nil
}

func (r *Registry) endpoint(key ConnectionKey) (string, error) {
	u, err := url.Parse(r.socketURL)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("clientId", key.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send delivers one wire message to the recipients over the keyed
// connection. It never retries; every failure is a *ChannelError.
func (r *Registry) Send(ctx context.Context, key ConnectionKey, msg *whatsapp.WireMessage, recipients []string, sessionID string) error {
	c := r.get(key)
	if c == nil {
		return notFound(key, "")
	}
	if len(recipients) == 0 {
		return &ChannelError{Kind: ErrRecipientRejected, Key: key.String(), Reason: "no recipients"}
	}
	return c.send(ctx, r.sendTimeout, outboundFrame{
		Event:     eventSendMessage,
		ClientID:  key.String(),
		SessionID: sessionID,
		Phones:    recipients,
		Message:   msg,
	})
}

func (r *Registry) Close(key ConnectionKey) error {
	r.mu.Lock()
	c, ok := r.conns[key]
	delete(r.conns, key)
	r.mu.Unlock()
	if !ok {
		return notFound(key, "")
	}
	c.shutdown()
	r.log.Info("connection closed", slog.String("client_id", key.String()))
	return nil
}

func (r *Registry) Status(key ConnectionKey) (ConnectionInfo, error) {
	c := r.get(key)
	if c == nil {
		return ConnectionInfo{}, notFound(key, "")
	}
	return c.info(), nil
}

func (r *Registry) List() []ConnectionInfo {
	r.mu.RLock()
	list := make([]ConnectionInfo, 0, len(r.conns))
	for _, c := range r.conns {
		list = append(list, c.info())
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ClientID < list[j].ClientID })
	return list
}

// Shutdown closes every connection.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[ConnectionKey]*connection)
	r.mu.Unlock()
	for _, c := range conns {
		c.shutdown()
	}
}

func (r *Registry) get(key ConnectionKey) *connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[key]
}

func (r *Registry) forwardStatus(key ConnectionKey, event StatusEvent) {
	if r.statusListener != nil {
		r.statusListener.ConnectionStatus(key, event)
	}
}

func (r *Registry) forwardMessage(key ConnectionKey, msg whatsapp.InboundMessage) {
	if r.messageListener != nil {
		r.messageListener.InboundMessage(key, msg)
	} else {
		r.log.Debug("inbound message without listener", slog.String("client_id", key.String()))
	}
}
