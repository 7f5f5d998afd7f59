package market

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"pokeball/internal/domain"
	"pokeball/internal/session"
)

// DefaultMarkup is the flip relist percentage when none is given.
const DefaultMarkup = 50

// purchase pairs a bought listing with the personal id it received.
type purchase struct {
	listing domain.Listing
	pokeID  int64
	sellFor int64
}

// Flipper buys a batch of cheap listings and relists each one at a
// markup. The autocatcher is suspended during the buy phase so catch
// traffic does not interleave with the negotiations.
type Flipper struct {
	client  *Client
	session *session.Session
	log     zerolog.Logger
}

func NewFlipper(client *Client, sess *session.Session, log zerolog.Logger) *Flipper {
	return &Flipper{
		client:  client,
		session: sess,
		log:     log.With().Str("component", "flipper").Logger(),
	}
}

// RelistPrice applies the markup percentage, rounding up.
func RelistPrice(price int64, markup int) int64 {
	return int64(math.Ceil(float64(price) * float64(100+markup) / 100))
}

// Run executes one flip: buy within maxInvest, then relist everything
// bought. It returns the net profit across confirmed relists.
func (f *Flipper) Run(ctx context.Context, filter domain.SnipeFilter) (int64, error) {
	if filter.MaxInvest <= 0 {
		return 0, fmt.Errorf("a maximum investment is required")
	}
	markup := filter.Markup
	if markup == 0 {
		markup = DefaultMarkup
	}

	balance := f.session.Balance()
	if balance <= 0 {
		var err error
		balance, err = f.client.Balance(ctx)
		if err != nil {
			return 0, fmt.Errorf("fetch balance: %w", err)
		}
	}
	if balance < filter.MaxInvest {
		return 0, fmt.Errorf("balance %d pc cannot cover the %d pc investment", balance, filter.MaxInvest)
	}

	latestID, err := f.client.LatestPokeID(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest id: %w", err)
	}

	listings, _, err := f.client.Listings(ctx, filter.Name, filter.Shiny, 30*time.Second)
	if err != nil {
		return 0, fmt.Errorf("fetch listings: %w", err)
	}
	sortByPrice(listings)

	purchases, invested := f.buyPhase(ctx, listings, filter.MaxInvest, markup, latestID)
	f.log.Info().Int("count", len(purchases)).Int64("invested", invested).
		Msg("buy phase done")

	var returns int64
	for _, p := range purchases {
		ok, err := f.client.Sell(ctx, p.pokeID, p.listing.Name, p.listing.IVPercent, p.sellFor)
		if err != nil {
			f.log.Warn().Err(err).Int64("poke_id", p.pokeID).Msg("relist failed")
			continue
		}
		if !ok {
			continue
		}
		returns += p.sellFor
		f.log.Info().Str("name", p.listing.Name).Int64("from", p.listing.Price).
			Int64("to", p.sellFor).Msg("flipped")
	}

	profit := returns - invested
	f.log.Info().Int64("invested", invested).Int64("returns", returns).
		Int64("profit", profit).Msg("flip complete")
	return profit, nil
}

func (f *Flipper) buyPhase(ctx context.Context, listings []domain.Listing, maxInvest int64, markup int, latestID int64) ([]purchase, int64) {
	savedCatcher := f.session.Autocatcher()
	f.session.SetAutocatcher(false)
	defer f.session.SetAutocatcher(savedCatcher)

	var purchases []purchase
	var invested int64
	for _, l := range listings {
		if invested+l.Price > maxInvest {
			break
		}
		ok, err := f.client.Buy(ctx, l)
		if err != nil {
			f.log.Warn().Err(err).Str("market_id", l.MarketID).Msg("buy failed")
			continue
		}
		if !ok {
			continue
		}
		latestID++
		invested += l.Price
		f.session.SetBalance(f.session.Balance() - l.Price)
		purchases = append(purchases, purchase{
			listing: l,
			pokeID:  latestID,
			sellFor: RelistPrice(l.Price, markup),
		})
	}
	return purchases, invested
}
