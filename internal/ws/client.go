package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"BotFlow/internal/lib/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authenticator validates a token and returns the username.
type Authenticator interface {
	ValidateToken(token string) (string, error)
}

type dashboard struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	username string
	log      *slog.Logger
}

// Serve upgrades operator dashboards. Browsers cannot set headers on a
// websocket handshake, so the api key comes in the token query parameter.
func Serve(log *slog.Logger, hub *Hub, auth Authenticator) http.HandlerFunc {
	log = log.With(sl.Module("ws"))
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		username, err := auth.ValidateToken(token)
		if err != nil {
			log.With(sl.Err(err), sl.Secret("token", token)).Warn("dashboard rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.With(sl.Err(err)).Error("websocket upgrade failed")
			return
		}

		d := &dashboard{
			hub:      hub,
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			username: username,
			log:      log.With(slog.String("username", username)),
		}
		select {
		case hub.register <- d:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go d.writePump()
		go d.readPump()
	}
}

func (d *dashboard) readPump() {
	defer func() {
		d.hub.leave(d)
		_ = d.conn.Close()
	}()

	d.conn.SetReadLimit(maxMessageSize)
	_ = d.conn.SetReadDeadline(time.Now().Add(pongWait))
	d.conn.SetPongHandler(func(string) error {
		return d.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := d.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.log.With(sl.Err(err)).Warn("dashboard connection lost")
			}
			return
		}
		d.hub.handleMessage(d, raw)
	}
}

// writePump owns all writes to the connection. It exits when the hub closes
// the send channel.
func (d *dashboard) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = d.conn.Close()
	}()

	for {
		select {
		case message, ok := <-d.send:
			_ = d.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = d.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := d.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = d.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := d.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
