package entity

type InputType string

const (
	TextInput          InputType = "text input"
	NumberInput        InputType = "number input"
	EmailInput         InputType = "email input"
	URLInput           InputType = "url input"
	DateInput          InputType = "date input"
	PhoneInput         InputType = "phone number input"
	ChoiceInput        InputType = "choice input"
	PictureChoiceInput InputType = "picture choice input"
	RatingInput        InputType = "rating input"
	FileInput          InputType = "file input"
	PaymentInput       InputType = "payment input"
)

// Input describes the reply the flow is waiting for.
type Input struct {
	ID      string        `json:"id"`
	Type    InputType     `json:"type"`
	Items   []InputItem   `json:"items,omitempty"`
	Options *InputOptions `json:"options,omitempty"`
}

type InputItem struct {
	ID          string `json:"id"`
	Content     string `json:"content,omitempty"`
	PictureSrc  string `json:"pictureSrc,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type InputOptions struct {
	IsMultipleChoice bool         `json:"isMultipleChoice,omitempty"`
	HasTime          bool         `json:"hasTime,omitempty"`
	IsRange          bool         `json:"isRange,omitempty"`
	Format           string       `json:"format,omitempty"`
	Length           int          `json:"length,omitempty"`
	StartsAt         *int         `json:"startsAt,omitempty"`
	Labels           *InputLabels `json:"labels,omitempty"`
}

type InputLabels struct {
	Placeholder string `json:"placeholder,omitempty"`
	Button      string `json:"button,omitempty"`
	Left        string `json:"left,omitempty"`
	Right       string `json:"right,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

// Label returns the display text of an item, preferring its title.
func (i InputItem) Label() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Content
}
