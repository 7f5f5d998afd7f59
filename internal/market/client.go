// Package market implements the marketplace protocol: listing fetch,
// two-phase buy and sell negotiations, and the sniper, flipper and
// tracker tasks built on them.
package market

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pokeball/internal/domain"
	"pokeball/internal/session"
	"pokeball/internal/transport"
)

const (
	buyProofTimeout   = 2 * time.Second
	buyConfirmTimeout = 3 * time.Second
	historyDepth      = 10
)

var displayingPattern = regexp.MustCompile(`Displaying\spokémon\s(\d+)\.`)

// Client speaks the marketplace protocol in one channel.
type Client struct {
	messenger transport.Messenger
	session   *session.Session
	channelID string
	log       zerolog.Logger

	// sleep is a seam for tests.
	sleep func(time.Duration)
}

func NewClient(m transport.Messenger, sess *session.Session, channelID string, log zerolog.Logger) *Client {
	return &Client{
		messenger: m,
		session:   sess,
		channelID: channelID,
		log:       log.With().Str("component", "market").Logger(),
		sleep:     time.Sleep,
	}
}

func (c *Client) prefix() string {
	return fmt.Sprintf("<@%s> ", c.session.Identity.CloneID)
}

func (c *Client) gameBot() string {
	return c.session.Identity.GameBotID
}

// Listings fetches the current marketplace rows for the filter. It
// races the listing embed against a "no listing" reply; on a total
// timeout it scans recent history for a late answer. The second return
// reports that wait-failed fallback, so pollers skip their interval
// sleep and retry promptly.
func (c *Client) Listings(ctx context.Context, name string, shiny bool, timeout time.Duration) ([]domain.Listing, bool, error) {
	cmd := c.prefix() + "m s --order price+"
	if name != "" {
		cmd += " --name " + strings.ToLower(name)
	}
	if shiny {
		cmd += " --sh"
	}
	if _, err := c.messenger.Send(ctx, c.channelID, cmd); err != nil {
		return nil, false, fmt.Errorf("send listing request: %w", err)
	}

	embedMatch := transport.And(
		transport.FromAuthor(c.gameBot()),
		transport.EmbedTitleContains("Marketplace"),
		embedDescContainsIfSet(name),
	)
	noListing := transport.And(
		transport.FromAuthor(c.gameBot()),
		transport.ContainsAll("No listing"),
	)

	reply := c.raceAwait(ctx, timeout, embedMatch, noListing)
	waitFailed := false
	if reply == nil {
		waitFailed = true
		history, err := c.messenger.History(ctx, c.channelID, historyDepth)
		if err != nil {
			return nil, true, fmt.Errorf("history fallback: %w", err)
		}
		for _, m := range history {
			if embedMatch(m) {
				reply = m
				break
			}
		}
		if reply == nil {
			return nil, true, nil
		}
	}

	if len(reply.Embeds) == 0 {
		c.log.Info().Str("name", name).Msg("no listings for the given condition")
		return nil, waitFailed, nil
	}
	return ParseListingEmbed(reply.Embeds[0].Description), waitFailed, nil
}

// embedDescContainsIfSet narrows the listing match to the hunted name
// when one is set.
func embedDescContainsIfSet(name string) transport.MatchFunc {
	if name == "" {
		return func(*transport.Message) bool { return true }
	}
	return transport.EmbedDescContains(name)
}

// raceAwait runs one await per matcher and returns the first hit, or
// nil when every await misses.
func (c *Client) raceAwait(ctx context.Context, timeout time.Duration, matchers ...transport.MatchFunc) *transport.Message {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *transport.Message, len(matchers))
	for _, match := range matchers {
		go func(match transport.MatchFunc) {
			m, _ := c.messenger.AwaitNext(raceCtx, c.channelID, match, timeout)
			results <- m
		}(match)
	}

	var reply *transport.Message
	for range matchers {
		if m := <-results; m != nil && reply == nil {
			reply = m
			cancel()
		}
	}
	return reply
}

// Balance asks the game bot for the current coin balance.
func (c *Client) Balance(ctx context.Context) (int64, error) {
	if _, err := c.messenger.Send(ctx, c.channelID, c.prefix()+"bal"); err != nil {
		return 0, fmt.Errorf("send balance request: %w", err)
	}
	reply, err := c.messenger.AwaitNext(ctx, c.channelID,
		transport.And(
			transport.FromAuthor(c.gameBot()),
			transport.EmbedTitleContains("balance"),
		),
		transport.DefaultAwaitTimeout)
	if err != nil {
		return 0, err
	}
	if reply == nil || len(reply.Embeds) == 0 {
		return 0, fmt.Errorf("no balance reply")
	}

	for _, field := range reply.Embeds[0].Fields {
		if field.Name != "Pokécoins" {
			continue
		}
		balance, err := strconv.ParseInt(strings.ReplaceAll(field.Value, ",", ""), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse balance %q: %w", field.Value, err)
		}
		c.session.SetBalance(balance)
		return balance, nil
	}
	return 0, fmt.Errorf("balance embed has no Pokécoins field")
}

// Buy runs the two-phase purchase negotiation for one listing. An
// outsniped or aborted resolution returns false without an error; it
// is an expected race with other buyers.
func (c *Client) Buy(ctx context.Context, listing domain.Listing) (bool, error) {
	cmd := fmt.Sprintf("%sm b %s", c.prefix(), listing.MarketID)
	if _, err := c.messenger.Send(ctx, c.channelID, cmd); err != nil {
		return false, fmt.Errorf("send buy: %w", err)
	}

	proof := transport.And(
		transport.FromAuthor(c.gameBot()),
		transport.ContainsAny(
			strings.ToLower(listing.Name),
			fmt.Sprintf("%v", listing.IVPercent),
			fmt.Sprintf("%d", listing.Price),
			"longer", "find", "aborted",
		),
	)
	reply, err := c.messenger.AwaitNext(ctx, c.channelID, proof, buyProofTimeout)
	if err != nil || reply == nil {
		return false, err
	}
	content := strings.ToLower(reply.Content)
	if strings.Contains(content, "longer") || strings.Contains(content, "find") {
		c.log.Info().Str("name", listing.Name).Float64("iv", listing.IVPercent).
			Msg("outsniped")
		return false, nil
	}
	if strings.Contains(content, "aborted") {
		return false, nil
	}

	if _, ok := transport.Buttons(reply)["Confirm"]; ok {
		if err := c.messenger.ClickButton(ctx, reply, "Confirm"); err != nil {
			return false, fmt.Errorf("confirm purchase: %w", err)
		}
	}

	final, err := c.messenger.AwaitNext(ctx, c.channelID,
		transport.And(
			transport.FromAuthor(c.gameBot()),
			transport.ContainsAny("Aborted", "Purchased", "longer", "find"),
		),
		buyConfirmTimeout)
	if err != nil || final == nil {
		return false, err
	}
	content = strings.ToLower(final.Content)
	if strings.Contains(content, "longer") || strings.Contains(content, "find") {
		c.log.Info().Str("name", listing.Name).Float64("iv", listing.IVPercent).
			Msg("outsniped")
		return false, nil
	}
	return strings.Contains(content, "purchased"), nil
}

// Sell lists a personally-owned entry on the market and confirms the
// follow-up prompt.
func (c *Client) Sell(ctx context.Context, pokeID int64, name string, iv float64, price int64) (bool, error) {
	cmd := fmt.Sprintf("%sm add %d %d", c.prefix(), pokeID, price)
	if _, err := c.messenger.Send(ctx, c.channelID, cmd); err != nil {
		return false, fmt.Errorf("send sell: %w", err)
	}

	proof := transport.And(
		transport.FromAuthor(c.gameBot()),
		transport.ContainsAny(
			strings.ToLower(name),
			fmt.Sprintf("%d", pokeID),
			fmt.Sprintf("%v", iv),
			fmt.Sprintf("%d", price),
			"aborted",
		),
	)
	reply, err := c.messenger.AwaitNext(ctx, c.channelID, proof, transport.DefaultAwaitTimeout)
	if err != nil || reply == nil {
		return false, err
	}
	if strings.Contains(strings.ToLower(reply.Content), "aborted") {
		return false, nil
	}

	c.sleep(confirmPause())
	if _, err := c.messenger.Send(ctx, c.channelID, "y"); err != nil {
		return false, fmt.Errorf("send sell confirmation: %w", err)
	}
	final, err := c.messenger.AwaitNext(ctx, c.channelID,
		transport.And(
			transport.FromAuthor(c.gameBot()),
			transport.ContainsAny("Listed", "aborted"),
		),
		transport.DefaultAwaitTimeout)
	if err != nil || final == nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(final.Content), "listed"), nil
}

// LatestPokeID reads the newest personal id from the info embed
// footer.
func (c *Client) LatestPokeID(ctx context.Context) (int64, error) {
	if _, err := c.messenger.Send(ctx, c.channelID, c.prefix()+"info"); err != nil {
		return 0, fmt.Errorf("send info request: %w", err)
	}
	reply, err := c.messenger.AwaitNext(ctx, c.channelID,
		transport.And(
			transport.FromAuthor(c.gameBot()),
			func(m *transport.Message) bool {
				for _, e := range m.Embeds {
					if displayingPattern.MatchString(e.Footer) {
						return true
					}
				}
				return false
			},
		),
		transport.DefaultAwaitTimeout)
	if err != nil {
		return 0, err
	}
	if reply == nil {
		return 0, fmt.Errorf("no info reply")
	}

	for _, e := range reply.Embeds {
		if m := displayingPattern.FindStringSubmatch(e.Footer); m != nil {
			return strconv.ParseInt(m[1], 10, 64)
		}
	}
	return 0, fmt.Errorf("info embed has no id footer")
}

// sortByPrice orders listings cheapest first.
func sortByPrice(listings []domain.Listing) {
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Price < listings[j].Price
	})
}

func confirmPause() time.Duration {
	return time.Duration((0.5 + rand.Float64()) * float64(time.Second))
}
