package entity

type MessageType string

const (
	BubbleText        MessageType = "text"
	BubbleImage       MessageType = "image"
	BubbleVideo       MessageType = "video"
	BubbleAudio       MessageType = "audio"
	BubbleEmbed       MessageType = "embed"
	BubbleCustomEmbed MessageType = "custom-embed"
)

// Text content formats.
const (
	TextRich     = "richText"
	TextMarkdown = "markdown"
)

// Video content sources.
const (
	VideoURL     = "url"
	VideoYoutube = "youtube"
	VideoVimeo   = "vimeo"
)

// Message is one channel-agnostic bot bubble. ID correlates client-side
// actions that must run after this bubble was delivered.
type Message struct {
	ID      string         `json:"id"`
	Type    MessageType    `json:"type"`
	Content MessageContent `json:"content"`
}

// MessageContent is the union of bubble payloads; Type is the text format for
// text bubbles and the source for video bubbles.
type MessageContent struct {
	Type      string         `json:"type,omitempty"`
	RichText  []RichTextNode `json:"richText,omitempty"`
	Markdown  string         `json:"markdown,omitempty"`
	PlainText string         `json:"plainText,omitempty"`
	URL       string         `json:"url,omitempty"`
	ID        string         `json:"id,omitempty"`
	Alt       string         `json:"alt,omitempty"`
}

// RichTextNode is a Slate-style element (with children) or leaf (with text).
type RichTextNode struct {
	Type          string         `json:"type,omitempty"`
	Text          string         `json:"text,omitempty"`
	URL           string         `json:"url,omitempty"`
	Bold          bool           `json:"bold,omitempty"`
	Italic        bool           `json:"italic,omitempty"`
	Underline     bool           `json:"underline,omitempty"`
	Strikethrough bool           `json:"strikethrough,omitempty"`
	Children      []RichTextNode `json:"children,omitempty"`
}

func (n RichTextNode) IsLeaf() bool {
	return len(n.Children) == 0
}

func (m MessageType) IsMedia() bool {
	switch m {
	case BubbleImage, BubbleVideo, BubbleAudio:
		return true
	}
	return false
}
