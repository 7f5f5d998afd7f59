// Package stub provides a scripted in-memory transport for tests.
package stub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pokeball/internal/transport"
)

// SentMessage records one outbound send.
type SentMessage struct {
	ChannelID string
	Text      string
}

// DM records one outbound direct message.
type DM struct {
	UserID string
	Text   string
	Embed  *transport.Embed
}

// scriptedReply delivers queued messages when an outbound text contains
// the trigger substring.
type scriptedReply struct {
	trigger  string
	messages []*transport.Message
}

// Messenger is a scripted transport.Messenger. Sends are recorded; replies
// queued with QueueReply become visible to AwaitNext after a send whose
// text contains the trigger. AwaitNext never blocks: when nothing pending
// matches, it reports a timeout miss immediately.
type Messenger struct {
	mu sync.Mutex

	Sent    []SentMessage
	DMs     []DM
	Pinned  []string
	Clicked []string
	Deleted []string

	replies      []*scriptedReply
	clickReplies []*scriptedReply
	pending      []*transport.Message
	history      map[string][]*transport.Message
	images       map[string][]byte

	// Forbidden lists channels where Send fails with ErrForbidden.
	Forbidden map[string]bool

	nextID int
}

// NewMessenger creates an empty scripted messenger.
func NewMessenger() *Messenger {
	return &Messenger{
		history:   make(map[string][]*transport.Message),
		images:    make(map[string][]byte),
		Forbidden: make(map[string]bool),
	}
}

// QueueReply schedules messages for delivery after a send whose text
// contains trigger (case-insensitive). Each queued reply fires once.
func (s *Messenger) QueueReply(trigger string, messages ...*transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, &scriptedReply{
		trigger:  strings.ToLower(trigger),
		messages: messages,
	})
}

// QueueClickReply schedules messages for delivery after a button click on
// the given label. Each queued reply fires once.
func (s *Messenger) QueueClickReply(label string, messages ...*transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clickReplies = append(s.clickReplies, &scriptedReply{
		trigger:  strings.ToLower(label),
		messages: messages,
	})
}

// Push makes messages immediately visible to AwaitNext.
func (s *Messenger) Push(messages ...*transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, messages...)
}

// SetHistory sets the channel history returned by History, newest first.
func (s *Messenger) SetHistory(channelID string, messages ...*transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[channelID] = messages
}

// SetImage registers image bytes for DownloadImage.
func (s *Messenger) SetImage(url string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[url] = data
}

// SentTexts returns the texts sent to channelID, in order.
func (s *Messenger) SentTexts(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var texts []string
	for _, m := range s.Sent {
		if m.ChannelID == channelID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

// Send records the outbound text and releases any matching scripted reply.
func (s *Messenger) Send(_ context.Context, channelID, text string) (*transport.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Forbidden[channelID] {
		return nil, transport.ErrForbidden
	}

	s.Sent = append(s.Sent, SentMessage{ChannelID: channelID, Text: text})

	lower := strings.ToLower(text)
	for i, r := range s.replies {
		if strings.Contains(lower, r.trigger) {
			s.pending = append(s.pending, r.messages...)
			s.replies = append(s.replies[:i], s.replies[i+1:]...)
			break
		}
	}

	s.nextID++
	return &transport.Message{
		ID:        fmt.Sprintf("sent-%d", s.nextID),
		ChannelID: channelID,
		Content:   text,
		Timestamp: time.Now(),
	}, nil
}

// AwaitNext consumes and returns the first pending message matching the
// channel and predicate, or (nil, nil) when nothing pending matches.
func (s *Messenger) AwaitNext(_ context.Context, channelID string, match transport.MatchFunc, _ time.Duration) (*transport.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.pending {
		if channelID != "" && m.ChannelID != channelID {
			continue
		}
		if match != nil && !match(m) {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		return m, nil
	}
	return nil, nil
}

// History returns the scripted history for channelID.
func (s *Messenger) History(_ context.Context, channelID string, limit int) ([]*transport.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.history[channelID]
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	return messages, nil
}

// SendDM records the direct message.
func (s *Messenger) SendDM(_ context.Context, userID, text string, embed *transport.Embed) (*transport.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DMs = append(s.DMs, DM{UserID: userID, Text: text, Embed: embed})
	s.nextID++
	return &transport.Message{ID: fmt.Sprintf("dm-%d", s.nextID), Content: text}, nil
}

// Pin records the pinned message id.
func (s *Messenger) Pin(_ context.Context, m *transport.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pinned = append(s.Pinned, m.ID)
	return nil
}

// ClickButton records the click and releases any matching scripted reply.
func (s *Messenger) ClickButton(_ context.Context, m *transport.Message, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := transport.Buttons(m)[label]; !ok {
		return fmt.Errorf("message has no %q button", label)
	}
	s.Clicked = append(s.Clicked, label)

	lower := strings.ToLower(label)
	for i, r := range s.clickReplies {
		if strings.Contains(lower, r.trigger) {
			s.pending = append(s.pending, r.messages...)
			s.clickReplies = append(s.clickReplies[:i], s.clickReplies[i+1:]...)
			break
		}
	}
	return nil
}

// Delete records the deleted message id.
func (s *Messenger) Delete(_ context.Context, m *transport.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, m.ID)
	return nil
}

// DownloadImage returns bytes registered with SetImage.
func (s *Messenger) DownloadImage(_ context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.images[url]
	if !ok {
		return nil, fmt.Errorf("no image registered for %s", url)
	}
	return data, nil
}

// Verify interface compliance at compile time.
var _ transport.Messenger = (*Messenger)(nil)
