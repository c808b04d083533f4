package whatsapp

type WireType string

const (
	WireText        WireType = "text"
	WireInteractive WireType = "interactive"
	WireImage       WireType = "image"
	WireVideo       WireType = "video"
	WireAudio       WireType = "audio"
)

const (
	InteractiveButton = "button"
	InteractiveList   = "list"
)

// Channel limits of the interactive payloads.
const (
	maxButtons       = 3
	maxListRows      = 10
	maxButtonTitle   = 20
	maxRowTitle      = 24
	maxRowDesc       = 72
	maxListButton    = 20
	maxBodyText      = 1024
	maxCaptionLength = 1024
)

// WireMessage is the socket service encoding of one outbound message.
type WireMessage struct {
	Type        WireType     `json:"type"`
	Body        string       `json:"body,omitempty"`
	PreviewURL  bool         `json:"previewUrl,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Media       *Media       `json:"media,omitempty"`
}

type Interactive struct {
	Type   string            `json:"type"`
	Body   *InteractiveText  `json:"body,omitempty"`
	Footer *InteractiveText  `json:"footer,omitempty"`
	Action InteractiveAction `json:"action"`
}

type InteractiveText struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Buttons  []Button  `json:"buttons,omitempty"`
	Button   string    `json:"button,omitempty"`
	Sections []Section `json:"sections,omitempty"`
}

type Button struct {
	Type  string      `json:"type"`
	Reply ButtonReply `json:"reply"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Section struct {
	Title string `json:"title,omitempty"`
	Rows  []Row  `json:"rows"`
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Media struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

// IsMedia reports whether the recipient renders the message as an attachment.
func (m *WireMessage) IsMedia() bool {
	switch m.Type {
	case WireImage, WireVideo, WireAudio:
		return true
	}
	return false
}

// TypingContent is the text a human would have typed for this message; media
// and body-less interactive messages have none.
func (m *WireMessage) TypingContent() string {
	switch m.Type {
	case WireText:
		return m.Body
	case WireInteractive:
		if m.Interactive == nil || m.Interactive.Body == nil {
			return ""
		}
		return m.Interactive.Body.Text
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
