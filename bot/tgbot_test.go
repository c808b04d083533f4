package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"BotFlow/bot/whatsapp/socket"
)

func TestSanitizeEscapesMarkdown(t *testing.T) {
	assert.Equal(t, `WARN: send failed \(status 503\)\. owner\_1`, sanitize("WARN: send failed (status 503). owner_1"))
	assert.Equal(t, "", sanitize(""))
	assert.Equal(t, "plain words", sanitize("plain words"))
}

func TestFormatConnections(t *testing.T) {
	assert.Equal(t, "No WhatsApp connections", formatConnections(nil))

	got := formatConnections([]socket.ConnectionInfo{
		{ClientID: "acme_1", Status: socket.StatusReady, Phone: "5511999990000"},
		{ClientID: "acme_2", Status: socket.StatusQR},
	})
	assert.Equal(t, "WhatsApp connections: 2\nacme_1 ready 5511999990000\nacme_2 qr", got)
}
