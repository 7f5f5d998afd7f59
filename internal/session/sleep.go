package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SleepScheduler puts the session to sleep at a fixed clock time each
// day: background tasks are snoozed and only priority spawns are
// handled until the duration elapses.
type SleepScheduler struct {
	session  *Session
	tasks    *TaskSet
	at       string // "15:04"
	duration time.Duration
	log      zerolog.Logger

	// now is settable for tests.
	now func() time.Time
}

func NewSleepScheduler(s *Session, tasks *TaskSet, at string, duration time.Duration, log zerolog.Logger) *SleepScheduler {
	return &SleepScheduler{
		session:  s,
		tasks:    tasks,
		at:       at,
		duration: duration,
		log:      log.With().Str("component", "sleep").Logger(),
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, sleeping the session once per day.
func (ss *SleepScheduler) Run(ctx context.Context) error {
	target, err := time.Parse("15:04", ss.at)
	if err != nil {
		return err
	}

	for {
		wait := ss.untilNext(target)
		ss.log.Info().Dur("in", wait).Msg("next sleep scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := ss.sleepOnce(ctx); err != nil {
			return err
		}
	}
}

func (ss *SleepScheduler) untilNext(target time.Time) time.Duration {
	now := ss.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), target.Hour(), target.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// sleepOnce snapshots the toggles, sleeps for the configured duration
// and restores them. A toggle the user flipped during sleep keeps the
// user's value.
func (ss *SleepScheduler) sleepOnce(ctx context.Context) error {
	s := ss.session
	savedSpam := s.AllowSpam()
	savedSnipe := s.Autosnipe()
	savedPriority := s.PriorityOnly()

	ss.tasks.SnoozeAll()
	s.SetAllowSpam(false)
	s.SetAutosnipe(false)
	s.SetPriorityOnly(true)
	s.SetSleeping(true)
	ss.log.Info().Dur("duration", ss.duration).Msg("sleeping")

	timer := time.NewTimer(ss.duration)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	s.SetSleeping(false)
	if !s.AllowSpam() {
		s.SetAllowSpam(savedSpam)
	}
	if !s.Autosnipe() {
		s.SetAutosnipe(savedSnipe)
	}
	if s.PriorityOnly() {
		s.SetPriorityOnly(savedPriority)
	}
	ss.tasks.ResumeAll()
	ss.log.Info().Msg("awake")

	return nil
}
