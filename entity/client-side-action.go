package entity

import (
	"encoding/json"
	"sort"
)

type WaitAction struct {
	SecondsToWaitFor float64 `json:"secondsToWaitFor"`
}

// ClientSideAction is a side effect interleaved with bubbles. Action kinds
// this channel does not execute are preserved as raw members.
type ClientSideAction struct {
	LastBubbleBlockID     string      `json:"lastBubbleBlockId,omitempty"`
	ExpectsDedicatedReply bool        `json:"expectsDedicatedReply,omitempty"`
	Wait                  *WaitAction `json:"wait,omitempty"`

	extra rawFields
}

type clientSideActionAlias ClientSideAction

func (a *ClientSideAction) UnmarshalJSON(data []byte) error {
	var alias clientSideActionAlias
	extra, err := decodeWithRaw(data, &alias)
	if err != nil {
		return err
	}
	*a = ClientSideAction(alias)
	a.extra = extra
	return nil
}

func (a ClientSideAction) MarshalJSON() ([]byte, error) {
	return encodeWithRaw(clientSideActionAlias(a), a.extra)
}

// Kind names the action variant: an explicit string "type" member when the
// engine sends one, otherwise the alphabetically first unknown member.
func (a ClientSideAction) Kind() string {
	if a.Wait != nil {
		return "wait"
	}
	if raw, ok := a.extra["type"]; ok {
		var kind string
		if err := json.Unmarshal(raw, &kind); err == nil && kind != "" {
			return kind
		}
	}
	if len(a.extra) == 0 {
		return "unknown"
	}
	keys := make([]string, 0, len(a.extra))
	for k := range a.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

// RunsBeforeMessages reports whether the action is not anchored to a bubble.
func (a ClientSideAction) RunsBeforeMessages() bool {
	return a.LastBubbleBlockID == ""
}
