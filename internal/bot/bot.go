// Package bot runs the event loop binding the gateway stream to the
// catcher and the command surface.
package bot

import (
	"context"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"

	"pokeball/internal/catcher"
	"pokeball/internal/command"
	"pokeball/internal/session"
	"pokeball/internal/transport"
)

var challengeURLPattern = regexp.MustCompile(`https?://\S+`)

// Config restricts which guilds and channels the bot acts in. Empty
// whitelists allow everything; blacklists always deny.
type Config struct {
	ChannelWhitelist []string
	ChannelBlacklist []string
	GuildWhitelist   []string
	GuildBlacklist   []string
}

type filter struct {
	channelAllow map[string]bool
	channelDeny  map[string]bool
	guildAllow   map[string]bool
	guildDeny    map[string]bool
}

func newFilter(cfg Config) *filter {
	return &filter{
		channelAllow: toSet(cfg.ChannelWhitelist),
		channelDeny:  toSet(cfg.ChannelBlacklist),
		guildAllow:   toSet(cfg.GuildWhitelist),
		guildDeny:    toSet(cfg.GuildBlacklist),
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (f *filter) allows(m *transport.Message) bool {
	if f.guildDeny[m.GuildID] || f.channelDeny[m.ChannelID] {
		return false
	}
	if len(f.guildAllow) > 0 && m.GuildID != "" && !f.guildAllow[m.GuildID] {
		return false
	}
	if len(f.channelAllow) > 0 && !f.channelAllow[m.ChannelID] {
		return false
	}
	return true
}

// Bot consumes gateway events and routes them to the catcher, the
// freezer and the command registry.
type Bot struct {
	session  *session.Session
	catcher  *catcher.Catcher
	commands *command.Registry
	freezer  *session.Freezer
	filter   *filter
	log      zerolog.Logger
}

func New(sess *session.Session, c *catcher.Catcher, commands *command.Registry, freezer *session.Freezer, cfg Config, log zerolog.Logger) *Bot {
	return &Bot{
		session:  sess,
		catcher:  c,
		commands: commands,
		freezer:  freezer,
		filter:   newFilter(cfg),
		log:      log.With().Str("component", "bot").Logger(),
	}
}

// Run consumes events until ctx is cancelled or the stream closes.
// Spawns are handled synchronously so the pipeline's mid-catch flag
// reflects reality; commands run in their own goroutine because some
// of them block on market negotiations.
func (b *Bot) Run(ctx context.Context, events <-chan *transport.Message) {
	b.log.Info().Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-events:
			if !ok {
				b.log.Info().Msg("event stream closed")
				return
			}
			b.handle(ctx, m)
		}
	}
}

func (b *Bot) handle(ctx context.Context, m *transport.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
		}
	}()
	if m == nil || !b.filter.allows(m) {
		return
	}

	if b.isSuspiciousNotice(m) {
		b.log.Warn().Str("channel", m.ChannelID).Msg("verification notice received")
		b.freezer.NoteSuspiciousActivity(ctx, challengeURLPattern.FindString(m.Content))
		return
	}

	if m.AuthorID == b.session.Identity.UserID {
		go b.dispatchCommand(ctx, m)
		return
	}

	if b.session.Autocatcher() && catcher.IsSpawn(m, b.session.Identity.GameBotID) {
		b.catcher.HandleSpawn(ctx, m)
	}
}

// isSuspiciousNotice detects the game bot's verification challenge
// aimed at this account.
func (b *Bot) isSuspiciousNotice(m *transport.Message) bool {
	content := strings.ToLower(m.Content)
	return strings.Contains(content, "whoa there") &&
		strings.Contains(content, b.session.Identity.UserID)
}

func (b *Bot) dispatchCommand(ctx context.Context, m *transport.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("command handler panicked")
		}
	}()
	b.commands.Dispatch(ctx, m)
}
