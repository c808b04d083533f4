package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"BotFlow/bot/whatsapp/socket"
	"BotFlow/entity"
	"BotFlow/internal/lib/sl"
)

const (
	EventWhatsappStatus = "whatsapp_status"
	EventDiagnostic     = "diagnostic"
	EventReattached     = "reattach_result"
	EventError          = "error"

	reattachTimeout = 30 * time.Second
)

// ClientMessageHandler handles requests sent by operator dashboards.
type ClientMessageHandler interface {
	ReattachConnection(ctx context.Context, clientID string) error
}

// Event is one frame pushed to operator dashboards.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ReattachResult struct {
	ClientID string `json:"client_id"`
	Ok       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

type directed struct {
	to    *dashboard
	event *Event
}

// Hub maintains the set of connected dashboards and fans events out to them.
// Only Run touches the send channels.
type Hub struct {
	dashboards map[*dashboard]bool
	broadcast  chan *Event
	reply      chan directed
	register   chan *dashboard
	unregister chan *dashboard
	done       chan struct{}
	mu         sync.RWMutex
	handler    ClientMessageHandler
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		dashboards: make(map[*dashboard]bool),
		broadcast:  make(chan *Event, 256),
		reply:      make(chan directed, 64),
		register:   make(chan *dashboard),
		unregister: make(chan *dashboard),
		done:       make(chan struct{}),
		log:        log.With(sl.Module("ws hub")),
	}
}

func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// Run is the hub event loop; it returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for d := range h.dashboards {
				h.drop(d)
			}
			h.mu.Unlock()
			return

		case d := <-h.register:
			h.mu.Lock()
			h.dashboards[d] = true
			h.mu.Unlock()
			h.log.With(slog.String("username", d.username)).Debug("dashboard connected")

		case d := <-h.unregister:
			h.mu.Lock()
			if h.dashboards[d] {
				h.drop(d)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, ok := h.encode(event)
			if !ok {
				continue
			}
			h.mu.Lock()
			for d := range h.dashboards {
				h.deliver(d, data)
			}
			h.mu.Unlock()

		case r := <-h.reply:
			data, ok := h.encode(r.event)
			if !ok {
				continue
			}
			h.mu.Lock()
			if h.dashboards[r.to] {
				h.deliver(r.to, data)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) encode(event *Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.With(sl.Err(err), slog.String("type", event.Type)).Error("marshal event")
		return nil, false
	}
	return data, true
}

// deliver must be called with mu held. A dashboard whose buffer is full is
// disconnected.
func (h *Hub) deliver(d *dashboard, data []byte) {
	select {
	case d.send <- data:
	default:
		h.log.With(slog.String("username", d.username)).Warn("slow dashboard dropped")
		h.drop(d)
	}
}

func (h *Hub) drop(d *dashboard) {
	close(d.send)
	delete(h.dashboards, d)
}

func (h *Hub) leave(d *dashboard) {
	select {
	case h.unregister <- d:
	case <-h.done:
	}
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.dashboards)
}

func (h *Hub) publish(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.With(slog.String("type", event.Type)).Warn("broadcast buffer full, event dropped")
	}
}

func (h *Hub) answer(d *dashboard, event *Event) {
	select {
	case h.reply <- directed{to: d, event: event}:
	case <-h.done:
	default:
		h.log.With(slog.String("type", event.Type)).Warn("reply buffer full, event dropped")
	}
}

// BroadcastStatus sends a whatsapp_status event for a pairing change.
func (h *Hub) BroadcastStatus(info socket.ConnectionInfo) {
	h.publish(&Event{Type: EventWhatsappStatus, Data: info})
}

// BroadcastDiagnostic sends a diagnostic event for a failed turn item.
func (h *Hub) BroadcastDiagnostic(d entity.Diagnostic) {
	h.publish(&Event{Type: EventDiagnostic, Data: d})
}

type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handleMessage dispatches one request from a dashboard and answers it on the
// same connection.
func (h *Hub) handleMessage(d *dashboard, raw []byte) {
	log := h.log.With(slog.String("username", d.username))

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.With(sl.Err(err)).Warn("parse dashboard message")
		h.answer(d, errorEvent("invalid message"))
		return
	}

	switch event.Type {
	case "reattach":
		var data struct {
			ClientID string `json:"client_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ClientID == "" {
			log.Warn("invalid reattach request")
			h.answer(d, errorEvent("client_id is required"))
			return
		}
		if h.handler == nil {
			h.answer(d, errorEvent("reattach is not available"))
			return
		}
		result := ReattachResult{ClientID: data.ClientID, Ok: true}
		ctx, cancel := context.WithTimeout(context.Background(), reattachTimeout)
		err := h.handler.ReattachConnection(ctx, data.ClientID)
		cancel()
		if err != nil {
			log.With(sl.Err(err), slog.String("client_id", data.ClientID)).Error("reattach connection")
			result.Ok = false
			result.Error = err.Error()
		}
		h.answer(d, &Event{Type: EventReattached, Data: result})
	default:
		log.With(slog.String("type", event.Type)).Debug("unknown dashboard message")
		h.answer(d, errorEvent("unknown message type: "+event.Type))
	}
}

func errorEvent(message string) *Event {
	return &Event{Type: EventError, Data: map[string]string{"message": message}}
}
