package socket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionKeyRoundTrip(t *testing.T) {
	at := time.UnixMilli(1718000000123)
	key := NewConnectionKey("workspace_42", at)
	assert.Equal(t, "workspace_42_1718000000123", key.String())

	parsed, err := ParseConnectionKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseConnectionKeyInvalid(t *testing.T) {
	for _, s := range []string{"", "owner", "_123", "owner_", "owner_abc", "owner_-5"} {
		_, err := ParseConnectionKey(s)
		assert.Error(t, err, s)
	}
}
