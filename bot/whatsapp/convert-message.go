package whatsapp

import (
	"strings"

	"BotFlow/entity"
)

// UnsupportedBubbles lists the bubble types that have no WhatsApp form.
var UnsupportedBubbles = []entity.MessageType{
	entity.BubbleEmbed,
	entity.BubbleCustomEmbed,
}

// ToWireMessage converts one bubble. A *ConversionError wrapping
// ErrNoRepresentation is returned for UnsupportedBubbles and one wrapping
// ErrMalformed for invalid content.
func ToWireMessage(msg entity.Message) (*WireMessage, error) {
	switch msg.Type {
	case entity.BubbleText:
		body := textContent(msg.Content)
		if body == "" {
			return nil, malformed(string(msg.Type), msg.ID, "empty text")
		}
		return &WireMessage{Type: WireText, Body: truncate(body, 4096)}, nil

	case entity.BubbleImage:
		if msg.Content.URL == "" {
			return nil, malformed(string(msg.Type), msg.ID, "missing url")
		}
		return &WireMessage{Type: WireImage, Media: &Media{Link: msg.Content.URL}}, nil

	case entity.BubbleVideo:
		return videoMessage(msg)

	case entity.BubbleAudio:
		if msg.Content.URL == "" {
			return nil, malformed(string(msg.Type), msg.ID, "missing url")
		}
		return &WireMessage{Type: WireAudio, Media: &Media{Link: msg.Content.URL}}, nil

	case entity.BubbleEmbed, entity.BubbleCustomEmbed:
		return nil, noRepresentation(string(msg.Type), msg.ID)
	}
	return nil, malformed(string(msg.Type), msg.ID, "unknown bubble type")
}

func textContent(c entity.MessageContent) string {
	switch {
	case len(c.RichText) > 0:
		return richTextToMarkdown(c.RichText)
	case c.Markdown != "":
		return markdownToWhatsApp(c.Markdown)
	}
	return strings.TrimSpace(c.PlainText)
}

// videoMessage sends hosted videos as attachments and platform videos as a
// link the recipient's client previews.
func videoMessage(msg entity.Message) (*WireMessage, error) {
	c := msg.Content
	switch c.Type {
	case entity.VideoYoutube, entity.VideoVimeo:
		link := c.URL
		if link == "" && c.ID != "" {
			if c.Type == entity.VideoYoutube {
				link = "https://www.youtube.com/watch?v=" + c.ID
			} else {
				link = "https://vimeo.com/" + c.ID
			}
		}
		if link == "" {
			return nil, malformed(string(msg.Type), msg.ID, "missing url")
		}
		return &WireMessage{Type: WireText, Body: link, PreviewURL: true}, nil
	}
	if c.URL == "" {
		return nil, malformed(string(msg.Type), msg.ID, "missing url")
	}
	return &WireMessage{Type: WireVideo, Media: &Media{Link: c.URL}}, nil
}
