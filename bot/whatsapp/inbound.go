package whatsapp

import (
	"strconv"
	"strings"

	"BotFlow/entity"
)

// InboundMessage is a user message received on a socket connection.
type InboundMessage struct {
	ID          string              `json:"id,omitempty"`
	From        string              `json:"from"`
	Type        string              `json:"type"`
	Text        *InboundText        `json:"text,omitempty"`
	Interactive *InboundInteractive `json:"interactive,omitempty"`
	Media       *Media              `json:"media,omitempty"`
}

type InboundText struct {
	Body string `json:"body"`
}

type InboundInteractive struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *Row         `json:"list_reply,omitempty"`
}

// ReplyFromInbound turns an inbound message into the reply the engine
// expects for the awaited input. Menu selections and typed option numbers
// resolve to the item content.
func ReplyFromInbound(msg InboundMessage, awaiting *entity.Input) (string, error) {
	switch msg.Type {
	case "interactive":
		if msg.Interactive == nil {
			return "", malformed(msg.Type, msg.ID, "missing interactive payload")
		}
		var id, title string
		switch {
		case msg.Interactive.ButtonReply != nil:
			id, title = msg.Interactive.ButtonReply.ID, msg.Interactive.ButtonReply.Title
		case msg.Interactive.ListReply != nil:
			id, title = msg.Interactive.ListReply.ID, msg.Interactive.ListReply.Title
		default:
			return "", malformed(msg.Type, msg.ID, "no selection")
		}
		if item, ok := itemByID(awaiting, id); ok {
			return item.Content, nil
		}
		return title, nil

	case "text":
		if msg.Text == nil || strings.TrimSpace(msg.Text.Body) == "" {
			return "", malformed(msg.Type, msg.ID, "empty text")
		}
		if reply, ok := matchNumberedChoice(msg.Text.Body, awaiting); ok {
			return reply, nil
		}
		return msg.Text.Body, nil

	case "image", "video", "audio", "document":
		if msg.Media == nil || msg.Media.Link == "" {
			return "", malformed(msg.Type, msg.ID, "missing media link")
		}
		return msg.Media.Link, nil
	}
	return "", noRepresentation(msg.Type, msg.ID)
}

func itemByID(input *entity.Input, id string) (entity.InputItem, bool) {
	if input == nil {
		return entity.InputItem{}, false
	}
	for _, item := range input.Items {
		if item.ID == id {
			return item, true
		}
	}
	return entity.InputItem{}, false
}

// matchNumberedChoice converts "2" or "1, 3" to item contents when a choice
// input is awaited. Any token out of range means the text is a free reply.
func matchNumberedChoice(text string, input *entity.Input) (string, bool) {
	if input == nil || len(input.Items) == 0 {
		return "", false
	}
	if input.Type != entity.ChoiceInput && input.Type != entity.PictureChoiceInput {
		return "", false
	}
	multiple := input.Options != nil && input.Options.IsMultipleChoice

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	if len(tokens) == 0 || (!multiple && len(tokens) > 1) {
		return "", false
	}
	contents := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		num, err := strconv.Atoi(tok)
		if err != nil || num < 1 || num > len(input.Items) {
			return "", false
		}
		contents = append(contents, input.Items[num-1].Content)
	}
	return strings.Join(contents, ", "), true
}
