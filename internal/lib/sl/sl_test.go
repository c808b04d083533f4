package sl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErr(t *testing.T) {
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "nil", Err(nil).Value.String())
}

func TestSecret(t *testing.T) {
	assert.Equal(t, "***", Secret("k", "short").Value.String())
	assert.Equal(t, "ab***yz", Secret("k", "abcdefghxyz").Value.String())
}
