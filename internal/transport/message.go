package transport

import "time"

// Message is the transport-native representation of one chat message.
type Message struct {
	ID         string
	ChannelID  string
	GuildID    string
	AuthorID   string
	Content    string
	Embeds     []Embed
	Components []Component
	Timestamp  time.Time
}

// Embed is a rich content block attached to a message.
type Embed struct {
	Title       string
	Description string
	Footer      string
	Color       int
	ImageURL    string
	Fields      []EmbedField
}

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Component is an interactive element attached to a message.
type Component struct {
	Label    string
	CustomID string
}

// Buttons returns the message's interactive components keyed by label.
func Buttons(m *Message) map[string]Component {
	if m == nil || len(m.Components) == 0 {
		return nil
	}
	buttons := make(map[string]Component, len(m.Components))
	for _, c := range m.Components {
		buttons[c.Label] = c
	}
	return buttons
}

// FirstImageURL returns the first embed image in the message, or "".
func FirstImageURL(m *Message) string {
	for _, e := range m.Embeds {
		if e.ImageURL != "" {
			return e.ImageURL
		}
	}
	return ""
}
