// Package catcher runs the per-spawn catch pipeline: classify the
// spawn image, consult policy, optionally yield to other players, then
// attempt the catch and reconcile the reply.
package catcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pokeball/internal/classifier"
	"pokeball/internal/domain"
	"pokeball/internal/policy"
	"pokeball/internal/session"
	"pokeball/internal/stats"
	"pokeball/internal/storage"
	"pokeball/internal/transport"
)

// Notification embed colors per category.
var categoryColors = map[domain.Category]int{
	domain.CategoryCommon:    0x95A5A6,
	domain.CategoryPriority:  0x2ECC71,
	domain.CategoryLegendary: 0xF00000,
	domain.CategoryShiny:     0xF4D03D,
}

// Config are the pipeline knobs.
type Config struct {
	// ConfidenceThreshold is the percent below which non-priority
	// classifications are skipped.
	ConfidenceThreshold int
	// Delay is the courtesy delay granted to human players.
	Delay time.Duration
	// TypoRate is the percent chance of sending a mistyped guess
	// first.
	TypoRate int
	// HintEnabled turns on wrong-guess recovery through the hint
	// command.
	HintEnabled bool
}

// Catcher consumes spawn events.
type Catcher struct {
	messenger transport.Messenger
	classify  classifier.Classifier
	store     storage.CaughtStore
	policy    *policy.Policy
	names     *policy.NameIndex
	session   *session.Session
	freezer   *session.Freezer
	stats     *stats.Accumulator
	cfg       Config
	log       zerolog.Logger

	caught atomic.Int64

	// sleep is a seam for tests.
	sleep func(time.Duration)
}

func New(
	m transport.Messenger,
	cls classifier.Classifier,
	store storage.CaughtStore,
	pol *policy.Policy,
	names *policy.NameIndex,
	sess *session.Session,
	freezer *session.Freezer,
	acc *stats.Accumulator,
	cfg Config,
	log zerolog.Logger,
) *Catcher {
	return &Catcher{
		messenger: m,
		classify:  cls,
		store:     store,
		policy:    pol,
		names:     names,
		session:   sess,
		freezer:   freezer,
		stats:     acc,
		cfg:       cfg,
		log:       log.With().Str("component", "catcher").Logger(),
		sleep:     time.Sleep,
	}
}

// IsSpawn reports whether m is a wild-spawn announcement from the game
// bot.
func IsSpawn(m *transport.Message, gameBotID string) bool {
	if m == nil || m.AuthorID != gameBotID || len(m.Embeds) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(m.Embeds[0].Title), "wild")
}

// HandleSpawn runs the pipeline for one spawn event. The in-progress
// flag is cleared on every exit path, panics included.
func (c *Catcher) HandleSpawn(ctx context.Context, m *transport.Message) {
	if !IsSpawn(m, c.session.Identity.GameBotID) {
		return
	}
	c.session.SetCatching(true)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("channel", m.ChannelID).
				Msg("catch attempt panicked")
		}
		c.session.SetCatching(false)
	}()

	c.run(ctx, m)
}

func (c *Catcher) run(ctx context.Context, m *transport.Message) {
	if c.session.ChannelLocked(m.ChannelID) {
		return
	}

	url := transport.FirstImageURL(m)
	if url == "" {
		return
	}
	img, err := c.messenger.DownloadImage(ctx, url)
	if err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("spawn image fetch failed")
		return
	}
	verdict, err := c.classify.Classify(ctx, img)
	if err != nil {
		c.log.Warn().Err(err).Msg("classification failed")
		return
	}

	name := Title(verdict.Label)
	prioritized := c.policy.IsRanked(name) || c.policy.IsPriority(name)

	// Sleep mode narrows telemetry to priority spawns.
	if !c.session.Sleeping() || prioritized {
		c.stats.RecordSpawn(name, verdict.Confidence)
	}

	if verdict.Confidence < float64(c.cfg.ConfidenceThreshold)/100 && !prioritized {
		c.log.Info().Str("name", name).Float64("confidence", verdict.Confidence).
			Msg("low confidence, skipped")
		return
	}

	c.log.Info().Str("name", name).Float64("confidence", verdict.Confidence).
		Str("channel", m.ChannelID).Msg("wild spawn classified")

	count := 0
	if n, err := c.store.CountByName(ctx, name); err == nil {
		count = n
	}
	snap := policy.Snapshot{
		Sleeping:     c.session.Sleeping(),
		PriorityOnly: c.session.PriorityOnly(),
	}
	if !c.policy.ShouldCatch(name, snap, count) {
		return
	}

	if c.policy.ShouldDelay(name) && !c.letOthersCatch(ctx, m, name) {
		return
	}

	reply, name := c.attempt(ctx, m, name, verdict.Confidence)
	if reply == nil {
		return
	}
	c.confirm(ctx, m, reply, name)
}

// letOthersCatch waits out the grace delay while watching for a claim
// by another player. It reports whether the spawn is still open.
func (c *Catcher) letOthersCatch(ctx context.Context, m *transport.Message, name string) bool {
	grace := c.cfg.Delay + graceJitter()
	claimed, err := c.messenger.AwaitNext(ctx, m.ChannelID, c.claimedMatch(name), grace)
	if err != nil {
		return false
	}
	if claimed != nil {
		c.log.Info().Str("name", name).Msg("claimed by another player")
		return false
	}
	return true
}

func (c *Catcher) attempt(ctx context.Context, m *transport.Message, name string, confidence float64) (*transport.Message, string) {
	lower := strings.ToLower(name)

	typed := lower
	if c.cfg.TypoRate > 0 {
		typed = Typo(name, c.cfg.TypoRate)
	}
	if typed != lower {
		if !c.send(ctx, m.ChannelID, c.catchCommand(typed)) {
			return nil, ""
		}
		c.sleep(correctionPause())
	}

	if !c.send(ctx, m.ChannelID, c.catchCommand(lower)) {
		return nil, ""
	}
	reply, err := c.messenger.AwaitNext(ctx, m.ChannelID, c.replyMatch(), c.replyTimeout())
	if err != nil || reply == nil {
		c.log.Warn().Str("name", name).Msg("no reply to the catch command")
		return nil, ""
	}

	if strings.Contains(strings.ToLower(reply.Content), "wrong") {
		c.stats.RecordMiss(name, "wrong guess")
		return c.recoverFromWrong(ctx, m, name, confidence)
	}
	return reply, name
}

// recoverFromWrong resolves the real name through the hint command and
// retries once.
func (c *Catcher) recoverFromWrong(ctx context.Context, m *transport.Message, incorrect string, confidence float64) (*transport.Message, string) {
	if !c.cfg.HintEnabled {
		c.log.Info().Str("name", incorrect).Float64("confidence", confidence).
			Msg("wrong guess, hint recovery disabled")
		return nil, ""
	}

	if !c.send(ctx, m.ChannelID, c.prefix()+"hint") {
		return nil, ""
	}
	hintReply, err := c.messenger.AwaitNext(ctx, m.ChannelID,
		transport.And(
			transport.FromAuthor(c.session.Identity.GameBotID),
			transport.ContainsAll("The pokémon is"),
		),
		c.replyTimeout())
	if err != nil || hintReply == nil {
		return nil, ""
	}

	pattern, ok := hintPattern(hintReply.Content)
	if !ok {
		return nil, ""
	}
	resolved, ok := c.names.ResolveHint(pattern)
	if !ok {
		c.log.Warn().Str("hint", pattern).Str("predicted", incorrect).
			Msg("unknown species, hint did not resolve to one name")
		return nil, ""
	}

	if !c.send(ctx, m.ChannelID, c.catchCommand(strings.ToLower(resolved))) {
		return nil, ""
	}
	reply, err := c.messenger.AwaitNext(ctx, m.ChannelID, c.replyMatch(), c.replyTimeout())
	if err != nil || reply == nil {
		return nil, ""
	}
	if strings.Contains(strings.ToLower(reply.Content), "wrong") {
		c.stats.RecordMiss(resolved, "wrong guess after hint")
		return nil, ""
	}
	c.log.Info().Str("predicted", incorrect).Str("actual", resolved).
		Msg("recovered the catch through a hint")
	return reply, resolved
}

func (c *Catcher) confirm(ctx context.Context, m *transport.Message, reply *transport.Message, name string) {
	level, _ := ParseLevel(reply.Content)
	nameStr := FormattedName(reply.Content, name)
	shiny := strings.HasPrefix(nameStr, "[Shiny")
	category := c.category(name, shiny)

	total := c.caught.Add(1)
	c.stats.RecordCatch(name)
	c.freezer.NoteCatch(ctx, time.Now())
	c.log.Info().Str("name", nameStr).Int("level", level).
		Str("channel", m.ChannelID).Msg("caught")

	iv := 0.0
	if record, ok := c.discoverRecord(ctx, m.ChannelID, name, level); ok {
		iv = record.IV
		if err := c.store.InsertCaught(ctx, record); err != nil {
			c.log.Warn().Err(err).Int64("external_id", record.ExternalID).
				Msg("failed to persist the catch")
		}
	}

	c.notifyOwner(ctx, m, name, level, iv, category, total)
}

// discoverRecord asks the game bot for the personal listing and takes
// the newest (highest) id as the just-caught entry.
func (c *Catcher) discoverRecord(ctx context.Context, channelID, name string, level int) (*domain.CaughtRecord, bool) {
	c.sleep(discoveryPause())

	query := fmt.Sprintf("%spokemon --name %s --level %d", c.prefix(), strings.ToLower(name), level)
	if !c.send(ctx, channelID, query) {
		return nil, false
	}
	reply, err := c.messenger.AwaitNext(ctx, channelID,
		transport.And(
			transport.FromAuthor(c.session.Identity.GameBotID),
			transport.EmbedTitleContains("Your pokémon"),
		),
		c.replyTimeout())
	if err != nil || reply == nil || len(reply.Embeds) == 0 {
		c.log.Warn().Str("name", name).Msg("listing lookup failed, catch not persisted")
		return nil, false
	}

	var best *PokemonLine
	for _, line := range strings.Split(reply.Embeds[0].Description, "\n") {
		entry, err := ParsePokemonLine(line)
		if err != nil {
			continue
		}
		if best == nil || entry.ID > best.ID {
			e := entry
			best = &e
		}
	}
	if best == nil {
		return nil, false
	}

	return &domain.CaughtRecord{
		CaughtOn:   time.Now(),
		Name:       best.Name,
		ExternalID: best.ID,
		Level:      best.Level,
		IV:         best.IV,
		Category:   c.category(best.Name, best.Shiny),
		Nickname:   best.Nickname,
	}, true
}

// notifyOwner DMs a catch summary. Failures are swallowed; the catch
// is already persisted.
func (c *Catcher) notifyOwner(ctx context.Context, m *transport.Message, name string, level int, iv float64, category domain.Category, total int64) {
	fields := []transport.EmbedField{
		{Name: "Level", Value: fmt.Sprintf("%d", level)},
		{Name: "Type", Value: Title(string(category))},
	}
	if iv > 0 {
		fields = append(fields, transport.EmbedField{
			Name: "Total IV%", Value: fmt.Sprintf("%.2f", iv),
		})
	}
	fields = append(fields, transport.EmbedField{Name: "Channel", Value: m.ChannelID})

	embed := &transport.Embed{
		Title:       fmt.Sprintf("Caught a poke! [%d]", total),
		Description: fmt.Sprintf("**%s**", name),
		Color:       categoryColors[category],
		Fields:      fields,
	}

	dm, err := c.messenger.SendDM(ctx, c.session.Identity.OwnerID, "", embed)
	if err != nil {
		c.log.Warn().Err(err).Msg("owner notification failed")
		return
	}
	if category != domain.CategoryCommon && dm != nil {
		if err := c.messenger.Pin(ctx, dm); err != nil {
			c.log.Debug().Err(err).Msg("pin failed")
		}
	}
}

func (c *Catcher) category(name string, shiny bool) domain.Category {
	switch {
	case shiny:
		return domain.CategoryShiny
	case c.policy.IsRanked(name):
		return domain.CategoryLegendary
	case c.policy.IsPriority(name):
		return domain.CategoryPriority
	default:
		return domain.CategoryCommon
	}
}

// send posts text, locking the channel out on a permission error. The
// lock is logged once per channel.
func (c *Catcher) send(ctx context.Context, channelID, text string) bool {
	if _, err := c.messenger.Send(ctx, channelID, text); err != nil {
		if errors.Is(err, transport.ErrForbidden) {
			if c.session.LockChannel(channelID) {
				c.log.Warn().Str("channel", channelID).
					Msg("missing send permission, channel locked")
			}
		} else {
			c.log.Warn().Err(err).Str("channel", channelID).Msg("send failed")
		}
		return false
	}
	return true
}

func (c *Catcher) prefix() string {
	return fmt.Sprintf("<@%s> ", c.session.Identity.CloneID)
}

func (c *Catcher) catchCommand(name string) string {
	return c.prefix() + "c " + name
}

// replyMatch accepts a wrong-guess notice or a catch congratulation.
// A congratulation counts only when it mentions this account; another
// player catching the same spawn must not pass as ours.
func (c *Catcher) replyMatch() transport.MatchFunc {
	return transport.And(
		transport.FromAuthor(c.session.Identity.GameBotID),
		transport.Or(
			transport.ContainsAll("wrong"),
			transport.And(
				transport.ContainsAll("caught"),
				transport.Mentions(c.session.Identity.UserID),
			),
		),
	)
}

func (c *Catcher) claimedMatch(name string) transport.MatchFunc {
	return transport.And(
		transport.FromAuthor(c.session.Identity.GameBotID),
		transport.ContainsAll(strings.ToLower(name), "congratulations", "caught"),
	)
}

func (c *Catcher) replyTimeout() time.Duration {
	if c.cfg.Delay > 500*time.Millisecond {
		return c.cfg.Delay
	}
	return 500 * time.Millisecond
}

// hintPattern extracts the fill-in-the-blank pattern from a hint reply
// such as `The pokémon is P\_k\_ch\_.`.
func hintPattern(content string) (string, bool) {
	const marker = " is "
	idx := strings.LastIndex(content, marker)
	if idx < 0 {
		return "", false
	}
	pattern := content[idx+len(marker):]
	pattern = strings.ReplaceAll(pattern, "\\", "")
	pattern = strings.TrimSuffix(strings.TrimSpace(pattern), ".")
	if pattern == "" {
		return "", false
	}
	return pattern, true
}

// graceJitter adds a small positive tail to the courtesy delay.
func graceJitter() time.Duration {
	j := rand.NormFloat64() * 0.3
	if j < 0 {
		j = 0
	}
	if j > 0.2 {
		j = 0.2
	}
	return time.Duration(j * float64(time.Second))
}

// correctionPause separates the mistyped guess from its correction.
func correctionPause() time.Duration {
	return time.Duration((0.5 + rand.Float64()*0.5) * float64(time.Second))
}

// discoveryPause lets the game bot register the catch before the
// listing lookup.
func discoveryPause() time.Duration {
	return time.Duration((2.0 + rand.Float64()*0.5) * float64(time.Second))
}
