package socket

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConnectionKey identifies one paired WhatsApp login. Its string form
// "{owner}_{epochMillis}" is the clientId used by the socket service.
type ConnectionKey struct {
	OwnerID string
	Epoch   int64
}

func NewConnectionKey(ownerID string, at time.Time) ConnectionKey {
	return ConnectionKey{OwnerID: ownerID, Epoch: at.UnixMilli()}
}

func (k ConnectionKey) String() string {
	return fmt.Sprintf("%s_%d", k.OwnerID, k.Epoch)
}

func (k ConnectionKey) IsZero() bool {
	return k.OwnerID == "" && k.Epoch == 0
}

// ParseConnectionKey splits on the last underscore, so owner ids may
// contain underscores themselves.
func ParseConnectionKey(s string) (ConnectionKey, error) {
	i := strings.LastIndex(s, "_")
	if i <= 0 || i == len(s)-1 {
		return ConnectionKey{}, fmt.Errorf("invalid connection key %q", s)
	}
	epoch, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil || epoch < 0 {
		return ConnectionKey{}, fmt.Errorf("invalid connection key %q: bad epoch", s)
	}
	return ConnectionKey{OwnerID: s[:i], Epoch: epoch}, nil
}
