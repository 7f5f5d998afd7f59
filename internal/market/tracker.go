package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pokeball/internal/domain"
	"pokeball/internal/storage"
)

// Tracker polls the cheapest listing for one name and archives a
// price sample whenever a new listing id appears.
type Tracker struct {
	client   *Client
	store    storage.PriceSampleStore
	name     string
	shiny    bool
	interval time.Duration
	log      zerolog.Logger

	seen map[string]bool

	// sleep and now are seams for tests.
	sleep func(time.Duration)
	now   func() time.Time
}

func NewTracker(client *Client, store storage.PriceSampleStore, name string, shiny bool, interval time.Duration, log zerolog.Logger) *Tracker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Tracker{
		client:   client,
		store:    store,
		name:     name,
		shiny:    shiny,
		interval: interval,
		log: log.With().Str("component", "tracker").
			Str("name", name).Bool("shiny", shiny).Logger(),
		seen:  make(map[string]bool),
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Run polls until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	t.log.Info().Msg("price tracking started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := t.now()
		waitFailed := t.cycle(ctx)

		// A wait-failed fetch already burned the interval waiting, so
		// the next poll goes out immediately.
		if elapsed := t.now().Sub(start); !waitFailed && elapsed < t.interval {
			t.sleep(t.interval - elapsed)
		}
	}
}

func (t *Tracker) cycle(ctx context.Context) bool {
	listings, waitFailed, err := t.client.Listings(ctx, t.name, t.shiny, t.interval)
	if err != nil || len(listings) == 0 {
		t.log.Warn().Err(err).Msg("price poll failed")
		return waitFailed
	}

	cheapest := listings[0]
	for _, l := range listings[1:] {
		if l.Price < cheapest.Price {
			cheapest = l
		}
	}
	if t.seen[cheapest.MarketID] {
		return waitFailed
	}
	t.seen[cheapest.MarketID] = true

	sample := &domain.PriceSample{
		Name:       t.name,
		MarketID:   cheapest.MarketID,
		Price:      cheapest.Price,
		Shiny:      t.shiny,
		ObservedAt: t.now(),
	}
	if err := t.store.InsertSamples(ctx, []*domain.PriceSample{sample}); err != nil {
		t.log.Warn().Err(err).Msg("failed to archive the price sample")
		return waitFailed
	}
	t.log.Debug().Int64("price", cheapest.Price).Str("market_id", cheapest.MarketID).
		Msg("price sample archived")
	return waitFailed
}
