package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestFreezer(s *Session) *Freezer {
	f := NewFreezer(s, zerolog.Nop())
	f.cooldown = 100 * time.Millisecond
	f.tick = 5 * time.Millisecond
	return f
}

func TestFreezerThresholdRange(t *testing.T) {
	f := NewFreezer(New(Identity{}), zerolog.Nop())
	if f.Threshold() < 995 || f.Threshold() > 999 {
		t.Errorf("threshold = %d, want in [995, 999]", f.Threshold())
	}
}

func TestFreezerTripsOnThreshold(t *testing.T) {
	s := New(Identity{})
	s.SetAutocatcher(true)
	s.SetAllowSpam(true)
	s.SetVerified(true)

	f := newTestFreezer(s)
	f.threshold = 3

	var notified string
	f.Notify = func(text string) { notified = text }

	now := time.Now()
	f.NoteCatch(context.Background(), now)
	f.NoteCatch(context.Background(), now)
	if f.Active() {
		t.Fatal("breaker should not trip below threshold")
	}

	f.NoteCatch(context.Background(), now)
	if !f.Active() {
		t.Fatal("breaker should trip at threshold")
	}
	if s.Autocatcher() || s.AllowSpam() || s.Verified() {
		t.Error("trip should disable autocatcher, spam and verified")
	}
	if !s.Frozen() {
		t.Error("session should report frozen")
	}
	if notified == "" {
		t.Error("owner should be notified")
	}

	// Cooldown elapses and the saved flags come back.
	waitFor(t, func() bool { return !f.Active() })
	if !s.Autocatcher() || !s.AllowSpam() {
		t.Error("release should restore saved flags")
	}
	if got := s.CatchCount24h(time.Now()); got != 0 {
		t.Errorf("rolling window after release = %d, want 0", got)
	}
}

func TestFreezerVerifiedReleasesEarly(t *testing.T) {
	s := New(Identity{})
	s.SetAutocatcher(true)

	f := newTestFreezer(s)
	f.cooldown = time.Hour

	f.NoteSuspiciousActivity(context.Background(), "https://example.com/challenge")
	if !f.Active() {
		t.Fatal("notice should trip the breaker")
	}

	s.SetVerified(true)
	waitFor(t, func() bool { return !f.Active() })
	if !s.Autocatcher() {
		t.Error("release should restore the autocatcher")
	}
}

func TestFreezerNotifyIncludesChallengeURL(t *testing.T) {
	s := New(Identity{})
	f := newTestFreezer(s)

	var notified string
	f.Notify = func(text string) { notified = text }

	f.NoteSuspiciousActivity(context.Background(), "https://example.com/challenge")
	want := "catching paused for verification: https://example.com/challenge"
	if notified != want {
		t.Errorf("notify = %q, want %q", notified, want)
	}
}
