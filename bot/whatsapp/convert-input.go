package whatsapp

import (
	"fmt"
	"strings"

	"BotFlow/entity"
)

const (
	defaultChoiceBody  = "Choose an option:"
	defaultListButton  = "Options"
	multipleChoiceHint = "Reply with the option numbers separated by commas."
	singleChoiceHint   = "Reply with the option number."
	defaultFileHint    = "Send your file here."
)

// UnsupportedInputs lists the input types that have no WhatsApp form.
var UnsupportedInputs = []entity.InputType{
	entity.PaymentInput,
}

// ToWireMessages expands an awaited input into the ordered messages that
// prompt for it. Free-form inputs need no prompt beyond the preceding bubble
// and yield an empty sequence.
func ToWireMessages(input *entity.Input) ([]WireMessage, error) {
	if input == nil {
		return nil, malformed("input", "", "nil input")
	}
	typ := string(input.Type)

	switch input.Type {
	case entity.TextInput, entity.NumberInput, entity.EmailInput, entity.URLInput, entity.PhoneInput:
		return []WireMessage{}, nil

	case entity.DateInput:
		return []WireMessage{{Type: WireText, Body: dateHint(input.Options)}}, nil

	case entity.ChoiceInput:
		if len(input.Items) == 0 {
			return nil, malformed(typ, input.ID, "no items")
		}
		return []WireMessage{choiceMenu(input)}, nil

	case entity.PictureChoiceInput:
		if len(input.Items) == 0 {
			return nil, malformed(typ, input.ID, "no items")
		}
		out := make([]WireMessage, 0, len(input.Items)+1)
		for i, item := range input.Items {
			if item.PictureSrc == "" {
				continue
			}
			caption := fmt.Sprintf("%d. %s", i+1, itemLabel(item, i))
			if item.Description != "" {
				caption += "\n" + item.Description
			}
			out = append(out, WireMessage{
				Type:  WireImage,
				Media: &Media{Link: item.PictureSrc, Caption: truncate(caption, maxCaptionLength)},
			})
		}
		return append(out, choiceMenu(input)), nil

	case entity.RatingInput:
		return []WireMessage{{Type: WireText, Body: ratingPrompt(input.Options)}}, nil

	case entity.FileInput:
		hint := defaultFileHint
		if input.Options != nil && input.Options.Labels != nil && input.Options.Labels.Placeholder != "" {
			hint = input.Options.Labels.Placeholder
		}
		return []WireMessage{{Type: WireText, Body: hint}}, nil

	case entity.PaymentInput:
		return nil, noRepresentation(typ, input.ID)
	}
	return nil, malformed(typ, input.ID, "unknown input type")
}

// choiceMenu picks the richest menu the channel can render for the items.
func choiceMenu(input *entity.Input) WireMessage {
	multiple := input.Options != nil && input.Options.IsMultipleChoice
	n := len(input.Items)
	switch {
	case !multiple && n <= maxButtons:
		return buttonMenu(input)
	case !multiple && n <= maxListRows:
		return listMenu(input)
	}
	return numberedMenu(input, multiple)
}

func choiceBody(input *entity.Input) string {
	if input.Options != nil && input.Options.Labels != nil && input.Options.Labels.Placeholder != "" {
		return truncate(input.Options.Labels.Placeholder, maxBodyText)
	}
	return defaultChoiceBody
}

func buttonMenu(input *entity.Input) WireMessage {
	buttons := make([]Button, 0, len(input.Items))
	for i, item := range input.Items {
		buttons = append(buttons, Button{
			Type:  "reply",
			Reply: ButtonReply{ID: item.ID, Title: truncate(itemLabel(item, i), maxButtonTitle)},
		})
	}
	return WireMessage{
		Type: WireInteractive,
		Interactive: &Interactive{
			Type:   InteractiveButton,
			Body:   &InteractiveText{Text: choiceBody(input)},
			Action: InteractiveAction{Buttons: buttons},
		},
	}
}

func listMenu(input *entity.Input) WireMessage {
	rows := make([]Row, 0, len(input.Items))
	for i, item := range input.Items {
		rows = append(rows, Row{
			ID:          item.ID,
			Title:       truncate(itemLabel(item, i), maxRowTitle),
			Description: truncate(item.Description, maxRowDesc),
		})
	}
	button := defaultListButton
	if input.Options != nil && input.Options.Labels != nil && input.Options.Labels.Button != "" {
		button = input.Options.Labels.Button
	}
	return WireMessage{
		Type: WireInteractive,
		Interactive: &Interactive{
			Type: InteractiveList,
			Body: &InteractiveText{Text: choiceBody(input)},
			Action: InteractiveAction{
				Button:   truncate(button, maxListButton),
				Sections: []Section{{Rows: rows}},
			},
		},
	}
}

// numberedMenu is the plain text fallback; replies are matched back by number.
func numberedMenu(input *entity.Input, multiple bool) WireMessage {
	var sb strings.Builder
	sb.WriteString(choiceBody(input))
	sb.WriteString("\n\n")
	for i, item := range input.Items {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, itemLabel(item, i)))
	}
	sb.WriteString("\n")
	if multiple {
		sb.WriteString(multipleChoiceHint)
	} else {
		sb.WriteString(singleChoiceHint)
	}
	return WireMessage{Type: WireText, Body: sb.String()}
}

func itemLabel(item entity.InputItem, i int) string {
	if l := strings.TrimSpace(item.Label()); l != "" {
		return l
	}
	return fmt.Sprintf("Option %d", i+1)
}

func dateHint(opts *entity.InputOptions) string {
	format := "dd/MM/yyyy"
	if opts != nil && opts.Format != "" {
		format = opts.Format
	} else if opts != nil && opts.HasTime {
		format = "dd/MM/yyyy HH:mm"
	}
	if opts != nil && opts.IsRange {
		return fmt.Sprintf("Reply with two dates (%s), from and to.", format)
	}
	return fmt.Sprintf("Reply with a date (%s).", format)
}

// ratingBounds returns the inclusive scale of a rating input.
func ratingBounds(opts *entity.InputOptions) (int, int) {
	length, start := 10, 1
	if opts != nil {
		if opts.Length > 0 {
			length = opts.Length
		}
		if opts.StartsAt != nil {
			start = *opts.StartsAt
		}
	}
	return start, start + length - 1
}

func ratingPrompt(opts *entity.InputOptions) string {
	from, to := ratingBounds(opts)
	prompt := fmt.Sprintf("Reply with a number from %d to %d.", from, to)
	if opts != nil && opts.Labels != nil && (opts.Labels.Left != "" || opts.Labels.Right != "") {
		prompt += fmt.Sprintf("\n%d = %s, %d = %s", from, opts.Labels.Left, to, opts.Labels.Right)
	}
	return prompt
}
