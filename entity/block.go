package entity

import "encoding/json"

const (
	// BlockTypeWhatsApp is the channel integration block type.
	BlockTypeWhatsApp = "WhatsApp"
)

type Typebot struct {
	ID     string  `json:"id,omitempty"`
	Groups []Group `json:"groups"`

	extra rawFields
}

type typebotAlias Typebot

func (t *Typebot) UnmarshalJSON(data []byte) error {
	var alias typebotAlias
	extra, err := decodeWithRaw(data, &alias)
	if err != nil {
		return err
	}
	*t = Typebot(alias)
	t.extra = extra
	return nil
}

func (t Typebot) MarshalJSON() ([]byte, error) {
	return encodeWithRaw(typebotAlias(t), t.extra)
}

// BlockByID walks every group for the block id.
func (t *Typebot) BlockByID(id string) (*Block, bool) {
	for gi := range t.Groups {
		for bi := range t.Groups[gi].Blocks {
			if t.Groups[gi].Blocks[bi].ID == id {
				return &t.Groups[gi].Blocks[bi], true
			}
		}
	}
	return nil, false
}

type Group struct {
	ID     string  `json:"id"`
	Title  string  `json:"title,omitempty"`
	Blocks []Block `json:"blocks"`

	extra rawFields
}

type groupAlias Group

func (g *Group) UnmarshalJSON(data []byte) error {
	var alias groupAlias
	extra, err := decodeWithRaw(data, &alias)
	if err != nil {
		return err
	}
	*g = Group(alias)
	g.extra = extra
	return nil
}

func (g Group) MarshalJSON() ([]byte, error) {
	return encodeWithRaw(groupAlias(g), g.extra)
}

type Block struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	GroupID string          `json:"groupId,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`

	extra rawFields
}

type blockAlias Block

func (b *Block) UnmarshalJSON(data []byte) error {
	var alias blockAlias
	extra, err := decodeWithRaw(data, &alias)
	if err != nil {
		return err
	}
	*b = Block(alias)
	b.extra = extra
	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	return encodeWithRaw(blockAlias(b), b.extra)
}

// WhatsappBlockOptions is the recipient/credential config of a channel integration block.
type WhatsappBlockOptions struct {
	Phone         string `json:"phone,omitempty"`
	CredentialsID string `json:"credentialsId,omitempty"`
}

// IsChannelIntegration reports whether the block hands off to the push channel
// and carries options, i.e. it may be driven forward without a human reply.
func (b *Block) IsChannelIntegration() bool {
	if b == nil || b.Type != BlockTypeWhatsApp {
		return false
	}
	return len(b.Options) > 0 && string(b.Options) != "null"
}

func (b *Block) WhatsappOptions() (*WhatsappBlockOptions, error) {
	if !b.IsChannelIntegration() {
		return nil, nil
	}
	var opts WhatsappBlockOptions
	if err := json.Unmarshal(b.Options, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}
