package command

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"pokeball/internal/session"
	"pokeball/internal/storage"
	"pokeball/internal/transport"
)

// Context carries everything a handler needs, prebuilt by Dispatch in
// a fixed order: prefix check, channel resolution, arg parse.
type Context struct {
	Session   *session.Session
	Store     storage.CaughtStore
	Messenger transport.Messenger
	Channel   string
	Args      []string
	Opts      map[string]string
	Flags     map[string]bool
	Log       zerolog.Logger
}

// Reply sends text back to the invoking channel.
func (c *Context) Reply(ctx context.Context, text string) error {
	_, err := c.Messenger.Send(ctx, c.Channel, text)
	return err
}

// Arg returns the positional argument at index, or "".
func (c *Context) Arg(index int) string {
	if index < 0 || index >= len(c.Args) {
		return ""
	}
	return c.Args[index]
}

// Handler runs one command.
type Handler func(ctx context.Context, c *Context) error

// Module groups related handlers under a name with a shared toggle.
type Module struct {
	Name     string
	Enabled  bool
	Handlers map[string]Handler
}

// Registry maps command names to handlers through their modules. The
// mapping is built at process start; nothing is discovered at runtime.
type Registry struct {
	session   *session.Session
	store     storage.CaughtStore
	messenger transport.Messenger
	log       zerolog.Logger

	modules []*Module
}

func NewRegistry(sess *session.Session, store storage.CaughtStore, m transport.Messenger, log zerolog.Logger) *Registry {
	return &Registry{
		session:   sess,
		store:     store,
		messenger: m,
		log:       log.With().Str("component", "command").Logger(),
	}
}

// Register adds a module. Later modules do not shadow earlier ones;
// duplicate command names are a wiring bug surfaced in the log.
func (r *Registry) Register(modules ...*Module) {
	for _, m := range modules {
		for name := range m.Handlers {
			if prev, _ := r.lookup(name); prev != nil {
				r.log.Warn().Str("command", name).Str("module", m.Name).
					Msg("duplicate command registration ignored")
				delete(m.Handlers, name)
			}
		}
		r.modules = append(r.modules, m)
	}
}

// SetEnabled flips a module's toggle. It reports whether the module
// exists.
func (r *Registry) SetEnabled(moduleName string, enabled bool) bool {
	for _, m := range r.modules {
		if m.Name == moduleName {
			m.Enabled = enabled
			return true
		}
	}
	return false
}

// Commands returns every registered command name in sorted order.
func (r *Registry) Commands() []string {
	var names []string
	for _, m := range r.modules {
		for name := range m.Handlers {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Handler, *Module) {
	for _, m := range r.modules {
		if h, ok := m.Handlers[name]; ok {
			return h, m
		}
	}
	return nil, nil
}

// Dispatch parses msg as a command and runs its handler. It reports
// whether the message was a known, enabled command. Handler errors are
// logged and echoed to the invoking channel.
func (r *Registry) Dispatch(ctx context.Context, msg *transport.Message) bool {
	inv, ok := Parse(msg.Content, r.session.Identity.Prefix)
	if !ok {
		return false
	}
	handler, module := r.lookup(inv.Name)
	if handler == nil {
		return false
	}
	if !module.Enabled {
		r.log.Debug().Str("command", inv.Name).Str("module", module.Name).
			Msg("module disabled")
		return false
	}

	c := &Context{
		Session:   r.session,
		Store:     r.store,
		Messenger: r.messenger,
		Channel:   msg.ChannelID,
		Args:      inv.Args,
		Opts:      inv.Opts,
		Flags:     inv.Flags,
		Log:       r.log.With().Str("command", inv.Name).Logger(),
	}
	if err := handler(ctx, c); err != nil {
		c.Log.Warn().Err(err).Msg("command failed")
		_ = c.Reply(ctx, "command failed: "+err.Error())
	}
	return true
}
