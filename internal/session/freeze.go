package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	freezeThresholdMin = 995
	freezeThresholdMax = 999
)

// Freezer is the captcha circuit breaker. It trips either when the
// rolling day's catch count reaches a per-process random threshold, or
// when a suspicious-activity notice is observed. While tripped the
// autocatcher and spam loops stay off until the cooldown elapses or
// the user flips the verified flag.
type Freezer struct {
	session   *Session
	threshold int
	log       zerolog.Logger

	// Notify forwards text to the owner. May be nil.
	Notify func(text string)

	// cooldown and tick are settable for tests.
	cooldown time.Duration
	tick     time.Duration

	mu         sync.Mutex
	active     bool
	savedSpam  bool
	savedCatch bool
}

func NewFreezer(s *Session, log zerolog.Logger) *Freezer {
	return &Freezer{
		session:   s,
		threshold: freezeThresholdMin + rand.IntN(freezeThresholdMax-freezeThresholdMin+1),
		log:       log.With().Str("component", "freezer").Logger(),
		cooldown:  24 * time.Hour,
		tick:      time.Second,
	}
}

// Threshold returns the catch count that trips the breaker.
func (f *Freezer) Threshold() int { return f.threshold }

// NoteCatch records a confirmed catch and trips the breaker when the
// rolling count reaches the threshold.
func (f *Freezer) NoteCatch(ctx context.Context, at time.Time) {
	count := f.session.RecordCatch(at)
	if count >= f.threshold {
		f.log.Warn().Int("count", count).Int("threshold", f.threshold).
			Msg("daily catch limit reached")
		f.trip(ctx, "")
	}
}

// NoteSuspiciousActivity trips the breaker on a verification notice.
// The challenge URL, when present, is forwarded to the owner.
func (f *Freezer) NoteSuspiciousActivity(ctx context.Context, challengeURL string) {
	f.log.Warn().Str("challenge_url", challengeURL).Msg("verification notice received")
	f.trip(ctx, challengeURL)
}

func (f *Freezer) trip(ctx context.Context, challengeURL string) {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return
	}
	f.active = true
	f.savedSpam = f.session.AllowSpam()
	f.savedCatch = f.session.Autocatcher()
	f.mu.Unlock()

	f.session.SetAllowSpam(false)
	f.session.SetAutocatcher(false)
	f.session.SetVerified(false)
	f.session.setFrozen(true)

	if f.Notify != nil {
		text := "catching paused for verification"
		if challengeURL != "" {
			text += ": " + challengeURL
		}
		f.Notify(text)
	}

	go f.countdown(ctx)
}

// countdown waits out the cooldown in short ticks so a verified flip
// releases the breaker promptly.
func (f *Freezer) countdown(ctx context.Context) {
	deadline := time.Now().Add(f.cooldown)
	ticker := time.NewTicker(f.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if f.session.Verified() {
				f.log.Info().Msg("verified, releasing early")
				f.release()
				return
			}
			if !now.Before(deadline) {
				f.log.Info().Msg("cooldown elapsed, releasing")
				f.release()
				return
			}
		}
	}
}

func (f *Freezer) release() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	spam, catch := f.savedSpam, f.savedCatch
	f.mu.Unlock()

	f.session.resetWindow()
	f.session.SetAllowSpam(spam)
	f.session.SetAutocatcher(catch)
	f.session.setFrozen(false)
}

// Active reports whether the breaker is tripped.
func (f *Freezer) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}
