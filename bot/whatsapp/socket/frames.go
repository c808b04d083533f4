package socket

import "BotFlow/bot/whatsapp"

const (
	eventSendMessage = "send-message"
	eventAck         = "ack"
	eventStatus      = "status"
	eventMessage     = "message"
)

type Status string

const (
	StatusConnecting Status = "connecting"
	StatusQR         Status = "qr"
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusClosed     Status = "closed"
)

const (
	ackOK       = "ok"
	ackRejected = "rejected"
)

type outboundFrame struct {
	Event     string                `json:"event"`
	RequestID string                `json:"requestId"`
	ClientID  string                `json:"clientId"`
	SessionID string                `json:"sessionId,omitempty"`
	Phones    []string              `json:"phones"`
	Message   *whatsapp.WireMessage `json:"message"`
}

type inboundFrame struct {
	Event     string                   `json:"event"`
	RequestID string                   `json:"requestId,omitempty"`
	Status    string                   `json:"status,omitempty"`
	Code      int                      `json:"code,omitempty"`
	Error     string                   `json:"error,omitempty"`
	QR        string                   `json:"qr,omitempty"`
	Phone     string                   `json:"phone,omitempty"`
	Message   *whatsapp.InboundMessage `json:"message,omitempty"`
}

// StatusEvent is a pairing progress update for one connection.
type StatusEvent struct {
	ClientID string `json:"client_id"`
	Status   Status `json:"status"`
	QR       string `json:"qr,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// ConnectionInfo describes a registered connection.
type ConnectionInfo struct {
	ClientID string `json:"client_id"`
	OwnerID  string `json:"owner_id"`
	Status   Status `json:"status"`
	Phone    string `json:"phone,omitempty"`
	QR       string `json:"qr,omitempty"`
}

type StatusListener interface {
	ConnectionStatus(key ConnectionKey, event StatusEvent)
}

type MessageListener interface {
	InboundMessage(key ConnectionKey, msg whatsapp.InboundMessage)
}
