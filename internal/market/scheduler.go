package market

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pokeball/internal/domain"
	"pokeball/internal/session"
	"pokeball/internal/storage"
)

// Scheduler owns the background market tasks. Snipers are keyed by
// their filter identity: adding a filter that matches a running
// sniper's key replaces that task instead of starting a second poller
// for the same hunt.
type Scheduler struct {
	client  *Client
	session *session.Session
	tasks   *session.TaskSet
	prices  storage.PriceSampleStore
	log     zerolog.Logger
}

func NewScheduler(client *Client, sess *session.Session, tasks *session.TaskSet, prices storage.PriceSampleStore, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		client:  client,
		session: sess,
		tasks:   tasks,
		prices:  prices,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

func snipeKey(f domain.SnipeFilter) string {
	return "snipe:" + f.Key()
}

func trackKey(name string, shiny bool) string {
	key := "track:" + strings.ToLower(name)
	if shiny {
		key = "track:shiny " + strings.ToLower(name)
	}
	return key
}

// AddSnipe starts a sniper for the filter, replacing any running
// sniper with the same identity.
func (s *Scheduler) AddSnipe(filter domain.SnipeFilter) {
	sniper := NewSniper(s.client, s.session, filter, s.log)
	if s.tasks.Has(snipeKey(filter)) {
		s.log.Info().Str("filter", filter.Key()).
			Msg("replacing the running sniper for this filter")
	}
	s.tasks.Start(snipeKey(filter), sniper.Run)
}

// RemoveSnipe cancels the sniper for the filter. It reports whether
// one was running.
func (s *Scheduler) RemoveSnipe(filter domain.SnipeFilter) bool {
	return s.tasks.Stop(snipeKey(filter))
}

// Snipes returns the identities of the running snipers.
func (s *Scheduler) Snipes() []string {
	var keys []string
	for _, k := range s.tasks.Keys() {
		if rest, ok := strings.CutPrefix(k, "snipe:"); ok {
			keys = append(keys, rest)
		}
	}
	return keys
}

// Track starts a price tracker for the name, replacing a running one.
func (s *Scheduler) Track(name string, shiny bool, interval time.Duration) {
	tracker := NewTracker(s.client, s.prices, name, shiny, interval, s.log)
	s.tasks.Start(trackKey(name, shiny), tracker.Run)
}

// Untrack cancels the tracker for the name. It reports whether one
// was running.
func (s *Scheduler) Untrack(name string, shiny bool) bool {
	return s.tasks.Stop(trackKey(name, shiny))
}

// Tracked returns the names currently being tracked.
func (s *Scheduler) Tracked() []string {
	var names []string
	for _, k := range s.tasks.Keys() {
		if rest, ok := strings.CutPrefix(k, "track:"); ok {
			names = append(names, rest)
		}
	}
	return names
}
