// Package session holds the mutable runtime state shared between the
// catcher, market tasks and command handlers.
package session

import (
	"sync"
	"time"
)

// Identity is the fixed account wiring for a session.
type Identity struct {
	// UserID is the acting account.
	UserID string
	// OwnerID receives notifications.
	OwnerID string
	// GameBotID is the game bot whose replies are awaited.
	GameBotID string
	// CloneID is mentioned when issuing catch commands.
	CloneID string
	// Prefix introduces user commands.
	Prefix string
}

// Session is the per-process runtime state. All flag access goes
// through the mutex; callers read a value and act on it without
// holding the lock, so flags are advisory.
type Session struct {
	Identity Identity

	mu sync.Mutex

	autocatcher  bool
	allowSpam    bool
	autosnipe    bool
	priorityOnly bool
	sleeping     bool
	verified     bool
	catching     bool
	frozen       bool

	balance int64

	locked map[string]bool

	// window holds the timestamps of confirmed catches within the
	// rolling day.
	window []time.Time
}

func New(id Identity) *Session {
	return &Session{
		Identity: id,
		locked:   make(map[string]bool),
	}
}

func (s *Session) Autocatcher() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autocatcher
}

func (s *Session) SetAutocatcher(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autocatcher = v
}

func (s *Session) AllowSpam() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowSpam
}

func (s *Session) SetAllowSpam(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowSpam = v
}

func (s *Session) Autosnipe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autosnipe
}

func (s *Session) SetAutosnipe(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autosnipe = v
}

func (s *Session) PriorityOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priorityOnly
}

func (s *Session) SetPriorityOnly(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorityOnly = v
}

func (s *Session) Sleeping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sleeping
}

func (s *Session) SetSleeping(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeping = v
}

func (s *Session) Verified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verified
}

func (s *Session) SetVerified(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = v
}

// Catching reports the advisory in-progress flag.
func (s *Session) Catching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catching
}

func (s *Session) SetCatching(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catching = v
}

func (s *Session) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

func (s *Session) setFrozen(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = v
}

func (s *Session) Balance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Session) SetBalance(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = v
}

// LockChannel marks a channel as unwritable. It reports whether the
// channel was newly locked.
func (s *Session) LockChannel(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[channelID] {
		return false
	}
	s.locked[channelID] = true
	return true
}

func (s *Session) ChannelLocked(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked[channelID]
}

// RecordCatch appends a confirmed catch to the rolling window and
// returns the count within the last 24 hours.
func (s *Session) RecordCatch(at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = append(s.window, at)
	return s.pruneWindowLocked(at)
}

// CatchCount24h returns the number of catches in the 24 hours before
// now.
func (s *Session) CatchCount24h(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneWindowLocked(now)
}

func (s *Session) pruneWindowLocked(now time.Time) int {
	cutoff := now.Add(-24 * time.Hour)
	i := 0
	for i < len(s.window) && s.window[i].Before(cutoff) {
		i++
	}
	s.window = s.window[i:]
	return len(s.window)
}

func (s *Session) resetWindow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = nil
}
