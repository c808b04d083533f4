package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoadDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	body := []byte(`
env: dev
whatsapp:
  socket_url: ws://socket:3002/ws
  send_timeout: 3s
flow:
  max_concurrent_turns: 8
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	conf := MustLoad(path)
	require.NotNil(t, conf)

	assert.Equal(t, "dev", conf.Env)
	assert.Equal(t, "ws://socket:3002/ws", conf.WhatsApp.SocketURL)
	assert.Equal(t, 3*time.Second, conf.WhatsApp.SendTimeout)
	assert.Equal(t, 5*time.Second, conf.WhatsApp.AfterMediaDelay)
	assert.Equal(t, int64(8), conf.Flow.MaxConcurrentTurns)
	assert.Equal(t, 100, conf.Flow.LaneSize)
	assert.Equal(t, 10*time.Minute, conf.Flow.TurnTimeout)
	assert.Equal(t, 25, conf.Flow.MaxHops)
	assert.Equal(t, "9100", conf.Listen.Port)
	assert.False(t, conf.Mongo.Enabled)
}
