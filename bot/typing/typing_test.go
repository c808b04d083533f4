package typing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"BotFlow/entity"
)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestDurationDefaults(t *testing.T) {
	d, ok := Duration("hello there friend", nil)
	assert.True(t, ok)
	assert.Equal(t, 450*time.Millisecond, d)
}

func TestDurationNoDelay(t *testing.T) {
	_, ok := Duration("", nil)
	assert.False(t, ok)

	_, ok = Duration("   \n", nil)
	assert.False(t, ok)

	_, ok = Duration("hello", &entity.TypingEmulation{Enabled: boolPtr(false)})
	assert.False(t, ok)
}

func TestDurationCappedAtMaxDelay(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	d, ok := Duration(long, nil)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	d, ok = Duration(long, &entity.TypingEmulation{MaxDelay: floatPtr(1.5)})
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestDurationCustomSpeed(t *testing.T) {
	d, ok := Duration("one two three four five six", &entity.TypingEmulation{Speed: floatPtr(60)})
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	d, ok = Duration("one", &entity.TypingEmulation{Speed: floatPtr(60), MaxDelay: floatPtr(10)})
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestDurationWordlessContent(t *testing.T) {
	d, ok := Duration("🙂🙂", nil)
	assert.True(t, ok)
	assert.Equal(t, 150*time.Millisecond, d)
}

func TestDurationDeterministic(t *testing.T) {
	a, _ := Duration("same input, same delay", nil)
	b, _ := Duration("same input, same delay", nil)
	assert.Equal(t, a, b)
}

func TestDurationNondecreasingInLength(t *testing.T) {
	text := "!! Olá, this is a longer message that keeps growing word by word until the cap"
	var prev time.Duration
	for i := 1; i <= len(text); i++ {
		d, ok := Duration(text[:i], nil)
		if !ok {
			continue
		}
		assert.Positive(t, d)
		assert.GreaterOrEqual(t, d, prev, "prefix %q", text[:i])
		prev = d
	}
}
