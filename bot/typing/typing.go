// Package typing estimates how long a human would take to type a bubble.
package typing

import (
	"regexp"
	"strings"
	"time"

	"BotFlow/entity"
)

const (
	DefaultSpeed    = 400.0 // words per minute
	DefaultMaxDelay = 3.0   // seconds
)

var wordPattern = regexp.MustCompile(`\w+`)

// Settings is the resolved typing emulation config.
type Settings struct {
	Enabled  bool
	Speed    float64
	MaxDelay time.Duration
}

// Resolve fills unset fields of the flow settings with defaults.
func Resolve(conf *entity.TypingEmulation) Settings {
	s := Settings{
		Enabled:  true,
		Speed:    DefaultSpeed,
		MaxDelay: time.Duration(DefaultMaxDelay * float64(time.Second)),
	}
	if conf == nil {
		return s
	}
	if conf.Enabled != nil {
		s.Enabled = *conf.Enabled
	}
	if conf.Speed != nil && *conf.Speed > 0 {
		s.Speed = *conf.Speed
	}
	if conf.MaxDelay != nil && *conf.MaxDelay >= 0 {
		s.MaxDelay = time.Duration(*conf.MaxDelay * float64(time.Second))
	}
	return s
}

// Duration returns the simulated typing delay for content, or false when no
// delay applies (emulation disabled or blank content).
func Duration(content string, conf *entity.TypingEmulation) (time.Duration, bool) {
	s := Resolve(conf)
	if !s.Enabled {
		return 0, false
	}
	words := countWords(content)
	if words == 0 {
		return 0, false
	}
	d := time.Duration(float64(words) / s.Speed * float64(time.Minute))
	if d > s.MaxDelay {
		d = s.MaxDelay
	}
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// countWords counts \w runs; non-blank content without any word (emoji,
// punctuation) still counts as one word.
func countWords(content string) int {
	if strings.TrimSpace(content) == "" {
		return 0
	}
	n := len(wordPattern.FindAllStringIndex(content, -1))
	if n == 0 {
		return 1
	}
	return n
}
