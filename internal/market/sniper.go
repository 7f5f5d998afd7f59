package market

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"pokeball/internal/domain"
	"pokeball/internal/session"
	"pokeball/internal/transport"
)

// Sniper polls the marketplace for one filter and buys affordable
// matches until its budget, the balance or the autosnipe toggle runs
// out.
type Sniper struct {
	client  *Client
	session *session.Session
	filter  domain.SnipeFilter
	log     zerolog.Logger

	// sleep is a seam for tests.
	sleep func(time.Duration)
	// now is a seam for tests.
	now func() time.Time
}

func NewSniper(client *Client, sess *session.Session, filter domain.SnipeFilter, log zerolog.Logger) *Sniper {
	if filter.Interval <= 0 {
		filter.Interval = 5 * time.Minute
	}
	return &Sniper{
		client:  client,
		session: sess,
		filter:  filter,
		log: log.With().Str("component", "sniper").
			Str("filter", filter.Key()).Logger(),
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Run polls until a termination condition or ctx cancellation. Cycle
// failures are logged and retried after the interval; the backoff is
// fixed, not exponential.
func (s *Sniper) Run(ctx context.Context) {
	s.log.Info().Msg("snipe monitor started")

	// A fresh session carries no balance yet; fetch it before the
	// affordability check so the monitor does not detach immediately.
	if s.session.Balance() <= 0 {
		if _, err := s.client.Balance(ctx); err != nil {
			s.log.Warn().Err(err).Msg("balance fetch failed")
		}
	}

	var invested int64
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !s.session.Autosnipe() {
			s.log.Info().Msg("autosnipe off, detaching snipe monitor")
			return
		}
		if s.session.Balance() < s.filter.MaxInvest-invested {
			s.log.Info().Int64("balance", s.session.Balance()).
				Msg("balance is lower than the remaining investment, detaching snipe monitor")
			return
		}
		if invested >= s.filter.MaxInvest {
			s.log.Info().Int64("invested", invested).
				Msg("reached the max investment limit, detaching snipe monitor")
			return
		}

		attempts++
		start := s.now()
		invested = s.cycle(ctx, attempts, invested)

		if elapsed := s.now().Sub(start); elapsed < s.filter.Interval {
			s.sleep(s.filter.Interval - elapsed)
		}
	}
}

// cycle fetches, filters and buys one round of listings. It returns
// the updated invested total; a panic abandons only this cycle.
func (s *Sniper) cycle(ctx context.Context, attempt int, invested int64) int64 {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Int("attempt", attempt).
				Msg("snipe cycle panicked")
		}
	}()

	listings, _, err := s.client.Listings(ctx, s.filter.Name, s.filter.Shiny, s.filter.Interval)
	if err != nil || listings == nil {
		s.log.Warn().Err(err).Int("attempt", attempt).
			Msg("failed to fetch market details, retrying")
		return invested
	}

	sortByPrice(listings)
	candidates := listings[:0:0]
	for _, l := range listings {
		if l.IVPercent > s.filter.IVMin && (s.filter.MaxUnitPrice == 0 || l.Price <= s.filter.MaxUnitPrice) {
			candidates = append(candidates, l)
		}
	}

	bought := 0
	for _, l := range candidates {
		if l.Price+invested > s.filter.MaxInvest {
			continue
		}
		ok, err := s.client.Buy(ctx, l)
		if err != nil {
			s.log.Warn().Err(err).Str("market_id", l.MarketID).Msg("buy failed")
			continue
		}
		if !ok {
			continue
		}
		invested += l.Price
		bought++
		s.session.SetBalance(s.session.Balance() - l.Price)
		s.notifyOwner(ctx, l, s.filter.MaxInvest-invested)
		s.sleep(purchasePause())
	}
	if bought == 0 {
		s.log.Debug().Int("attempt", attempt).Msg("no luck yet, will retry next cycle")
	}
	return invested
}

func (s *Sniper) notifyOwner(ctx context.Context, l domain.Listing, remaining int64) {
	name := l.Name
	if l.Shiny {
		name = "Shiny " + name
	}
	s.log.Info().Str("name", name).Int64("price", l.Price).
		Float64("iv", l.IVPercent).Msg("sniped")

	embed := &transport.Embed{
		Title:       fmt.Sprintf("Sniped a %s!", name),
		Description: fmt.Sprintf("Purchased it for **%d pc**.", l.Price),
		Color:       0x790000,
		Fields: []transport.EmbedField{
			{Name: "Level", Value: fmt.Sprintf("%d", l.Level), Inline: true},
			{Name: "IV", Value: fmt.Sprintf("%v%%", l.IVPercent), Inline: true},
			{Name: "Investment Remaining", Value: fmt.Sprintf("%d pc", remaining), Inline: true},
			{Name: "Current Balance", Value: fmt.Sprintf("%d pc", s.session.Balance()), Inline: true},
		},
	}
	if _, err := s.client.messenger.SendDM(ctx, s.session.Identity.OwnerID, "", embed); err != nil {
		s.log.Debug().Err(err).Msg("owner notification failed")
	}
}

func purchasePause() time.Duration {
	return time.Duration((1.0 + rand.Float64()) * float64(time.Second))
}
