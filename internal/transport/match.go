package transport

import "strings"

// MatchFunc tests one inbound message.
type MatchFunc func(*Message) bool

// foldASCII lowercases s and strips non-ASCII bytes. The game bot pads its
// replies with decorative unicode; literal phrase matching ignores it.
func foldASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

// FromAuthor matches messages sent by userID.
func FromAuthor(userID string) MatchFunc {
	return func(m *Message) bool {
		return m.AuthorID == userID
	}
}

// InChannel matches messages in channelID.
func InChannel(channelID string) MatchFunc {
	return func(m *Message) bool {
		return m.ChannelID == channelID
	}
}

// ContainsAll matches when the folded content contains every phrase.
func ContainsAll(phrases ...string) MatchFunc {
	return func(m *Message) bool {
		content := foldASCII(m.Content)
		for _, p := range phrases {
			if !strings.Contains(content, foldASCII(p)) {
				return false
			}
		}
		return true
	}
}

// ContainsAny matches when the folded content contains at least one phrase.
func ContainsAny(phrases ...string) MatchFunc {
	return func(m *Message) bool {
		content := foldASCII(m.Content)
		for _, p := range phrases {
			if strings.Contains(content, foldASCII(p)) {
				return true
			}
		}
		return false
	}
}

// Mentions matches when the content carries a mention tag for userID.
func Mentions(userID string) MatchFunc {
	plain := "<@" + userID + ">"
	nick := "<@!" + userID + ">"
	return func(m *Message) bool {
		return strings.Contains(m.Content, plain) || strings.Contains(m.Content, nick)
	}
}

// EmbedTitleContains matches when any embed title contains the phrase.
func EmbedTitleContains(phrase string) MatchFunc {
	folded := foldASCII(phrase)
	return func(m *Message) bool {
		for _, e := range m.Embeds {
			if strings.Contains(foldASCII(e.Title), folded) {
				return true
			}
		}
		return false
	}
}

// EmbedDescContains matches when any embed description contains the phrase.
func EmbedDescContains(phrase string) MatchFunc {
	folded := foldASCII(phrase)
	return func(m *Message) bool {
		for _, e := range m.Embeds {
			if strings.Contains(foldASCII(e.Description), folded) {
				return true
			}
		}
		return false
	}
}

// EmbedFieldValue matches when any embed has a field whose name contains
// fieldName; the match ignores the value.
func EmbedFieldValue(fieldName string) MatchFunc {
	folded := foldASCII(fieldName)
	return func(m *Message) bool {
		for _, e := range m.Embeds {
			for _, f := range e.Fields {
				if strings.Contains(foldASCII(f.Name), folded) {
					return true
				}
			}
		}
		return false
	}
}

// And matches when every predicate matches.
func And(matchers ...MatchFunc) MatchFunc {
	return func(m *Message) bool {
		for _, fn := range matchers {
			if !fn(m) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one predicate matches.
func Or(matchers ...MatchFunc) MatchFunc {
	return func(m *Message) bool {
		for _, fn := range matchers {
			if fn(m) {
				return true
			}
		}
		return false
	}
}
