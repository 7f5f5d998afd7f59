package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pokeball/internal/domain"
	"pokeball/internal/market"
	"pokeball/internal/policy"
	"pokeball/internal/stats"
	"pokeball/internal/storage"
)

// Handlers builds the stock command modules over the running
// components.
type Handlers struct {
	Policy    *policy.Policy
	Stats     *stats.Accumulator
	Scheduler *market.Scheduler
	Flipper   *market.Flipper

	DefaultInterval time.Duration
	DefaultMarkup   int
}

// Modules returns the stock modules, all enabled.
func (h *Handlers) Modules() []*Module {
	return []*Module{
		{
			Name:    "core",
			Enabled: true,
			Handlers: map[string]Handler{
				"autocatcher":  h.toggle("autocatcher"),
				"spam":         h.toggle("spam"),
				"priorityonly": h.toggle("priorityonly"),
				"sleep":        h.toggle("sleep"),
				"verified":     h.verified,
			},
		},
		{
			Name:    "market",
			Enabled: true,
			Handlers: map[string]Handler{
				"snipe":   h.snipe,
				"flip":    h.flip,
				"track":   h.track,
				"untrack": h.untrack,
			},
		},
		{
			Name:     "stats",
			Enabled:  true,
			Handlers: map[string]Handler{"stats": h.statsReport},
		},
		{
			Name:    "collection",
			Enabled: true,
			Handlers: map[string]Handler{
				"query":      h.query,
				"duplicates": h.duplicates,
				"trash":      h.trash,
				"avoid":      h.avoid,
			},
		},
	}
}

// toggle builds an on/off/flip handler for one session flag.
func (h *Handlers) toggle(flag string) Handler {
	return func(ctx context.Context, c *Context) error {
		read, write := c.flagAccess(flag)
		var next bool
		switch strings.ToLower(c.Arg(0)) {
		case "on", "true":
			next = true
		case "off", "false":
			next = false
		case "":
			next = !read()
		default:
			return fmt.Errorf("unknown argument %q, want on or off", c.Arg(0))
		}
		write(next)
		state := "off"
		if next {
			state = "on"
		}
		return c.Reply(ctx, flag+" is now "+state)
	}
}

// flagAccess maps a toggle name to its session accessors.
func (c *Context) flagAccess(flag string) (func() bool, func(bool)) {
	switch flag {
	case "autocatcher":
		return c.Session.Autocatcher, c.Session.SetAutocatcher
	case "spam":
		return c.Session.AllowSpam, c.Session.SetAllowSpam
	case "priorityonly":
		return c.Session.PriorityOnly, c.Session.SetPriorityOnly
	case "sleep":
		return c.Session.Sleeping, c.Session.SetSleeping
	default:
		panic("unknown toggle " + flag)
	}
}

// verified flips the verification flag, releasing an active freeze.
func (h *Handlers) verified(ctx context.Context, c *Context) error {
	c.Session.SetVerified(true)
	return c.Reply(ctx, "verification acknowledged")
}

func (h *Handlers) snipeFilter(c *Context) domain.SnipeFilter {
	name := c.Arg(1)
	if v, ok := c.Opts["name"]; ok {
		name = v
	}
	inv := &Invocation{Opts: c.Opts}
	interval := h.DefaultInterval
	if secs := inv.OptInt("interval", 0); secs > 0 {
		interval = time.Duration(secs) * time.Second
	}
	return domain.SnipeFilter{
		Name:         name,
		Shiny:        c.Flags["sh"],
		IVMin:        inv.OptFloat("iv", 0),
		MaxInvest:    inv.OptInt("invest", 0),
		MaxUnitPrice: inv.OptInt("unit", 0),
		Interval:     interval,
		Markup:       int(inv.OptInt("markup", int64(h.DefaultMarkup))),
	}
}

// snipe manages sniper registrations: snipe add <name> --iv N
// --invest N [--unit N] [--interval secs] [--sh], snipe remove <name>
// [--sh], snipe list.
func (h *Handlers) snipe(ctx context.Context, c *Context) error {
	switch strings.ToLower(c.Arg(0)) {
	case "add":
		filter := h.snipeFilter(c)
		if filter.Name == "" {
			return fmt.Errorf("a name is required")
		}
		if filter.MaxInvest <= 0 {
			return fmt.Errorf("--invest is required")
		}
		c.Session.SetAutosnipe(true)
		h.Scheduler.AddSnipe(filter)
		return c.Reply(ctx, "sniping "+filter.Key())
	case "remove":
		filter := h.snipeFilter(c)
		if !h.Scheduler.RemoveSnipe(filter) {
			return fmt.Errorf("no sniper registered for %s", filter.Key())
		}
		return c.Reply(ctx, "stopped sniping "+filter.Key())
	case "list":
		snipes := h.Scheduler.Snipes()
		if len(snipes) == 0 {
			return c.Reply(ctx, "no active snipers")
		}
		return c.Reply(ctx, strings.Join(snipes, "\n"))
	default:
		return fmt.Errorf("unknown subcommand %q, want add, remove or list", c.Arg(0))
	}
}

// flip runs one buy-and-relist round: flip --invest N [--name x]
// [--markup pct] [--sh].
func (h *Handlers) flip(ctx context.Context, c *Context) error {
	filter := h.snipeFilter(c)
	filter.Name = c.Arg(0)
	if v, ok := c.Opts["name"]; ok {
		filter.Name = v
	}
	if filter.MaxInvest <= 0 {
		return fmt.Errorf("--invest is required")
	}
	profit, err := h.Flipper.Run(ctx, filter)
	if err != nil {
		return err
	}
	return c.Reply(ctx, fmt.Sprintf("flip complete, net %d pc", profit))
}

// track starts price tracking: track <name> [--sh] [--interval secs].
func (h *Handlers) track(ctx context.Context, c *Context) error {
	name := c.Arg(0)
	if name == "" {
		return fmt.Errorf("a name is required")
	}
	interval := h.DefaultInterval
	if secs := (&Invocation{Opts: c.Opts}).OptInt("interval", 0); secs > 0 {
		interval = time.Duration(secs) * time.Second
	}
	h.Scheduler.Track(name, c.Flags["sh"], interval)
	return c.Reply(ctx, "tracking "+strings.ToLower(name))
}

func (h *Handlers) untrack(ctx context.Context, c *Context) error {
	name := c.Arg(0)
	if name == "" {
		return fmt.Errorf("a name is required")
	}
	if !h.Scheduler.Untrack(name, c.Flags["sh"]) {
		return fmt.Errorf("not tracking %s", strings.ToLower(name))
	}
	return c.Reply(ctx, "stopped tracking "+strings.ToLower(name))
}

func (h *Handlers) statsReport(ctx context.Context, c *Context) error {
	r := h.Stats.Snapshot()
	lines := []string{
		fmt.Sprintf("uptime %s", r.Uptime.Round(time.Second)),
		fmt.Sprintf("spawns %d, catches %d, misses %d (%.1f%% accuracy)",
			r.Spawns, r.Catches, r.Misses, r.Accuracy*100),
		fmt.Sprintf("rate %.2f/min, %.1f/h", r.PerMinute, r.PerHour),
		fmt.Sprintf("avg confidence %.1f%%", r.ConfidenceAvg),
	}
	if r.MostCommon != "" {
		lines = append(lines, "most common: "+r.MostCommon)
	}
	if r.MostSpawned != "" {
		lines = append(lines, "most spawned: "+r.MostSpawned)
	}
	return c.Reply(ctx, strings.Join(lines, "\n"))
}

// query lists stored records: query [--levelmin N] [--levelmax N]
// [--ivmin N] [--ivmax N] [--name x] [--category x] [--order col]
// [--limit N].
func (h *Handlers) query(ctx context.Context, c *Context) error {
	inv := &Invocation{Opts: c.Opts}
	q := storage.Query{
		MinLevel: int(inv.OptInt("levelmin", 0)),
		MaxLevel: int(inv.OptInt("levelmax", 0)),
		MinIV:    inv.OptFloat("ivmin", 0),
		MaxIV:    inv.OptFloat("ivmax", 0),
		OrderBy:  c.Opts["order"],
		Limit:    int(inv.OptInt("limit", 20)),
	}
	filters := make(map[string]string)
	for _, key := range []string{"name", "category", "nickname"} {
		if v, ok := c.Opts[key]; ok {
			filters[key] = v
		}
	}
	if len(filters) > 0 {
		q.Filters = filters
	}

	records, err := c.Store.QueryFiltered(ctx, q)
	if err != nil {
		return err
	}
	return c.Reply(ctx, formatRecords(records))
}

func (h *Handlers) duplicates(ctx context.Context, c *Context) error {
	minCount := int((&Invocation{Opts: c.Opts}).OptInt("min", 2))
	records, err := c.Store.Duplicates(ctx, minCount)
	if err != nil {
		return err
	}
	return c.Reply(ctx, formatRecords(records))
}

// trash lists disposable records: trash [--name x] [--iv N] [--keep N]
// [--delete]. The delete flag removes the listed records from the
// store; it does not release them on the game server.
func (h *Handlers) trash(ctx context.Context, c *Context) error {
	inv := &Invocation{Opts: c.Opts}
	q := storage.TrashQuery{
		Name:        c.Opts["name"],
		IVThreshold: inv.OptFloat("iv", 50),
		MaxKeep:     int(inv.OptInt("keep", 1)),
	}
	records, err := c.Store.TrashCandidates(ctx, q)
	if err != nil {
		return err
	}
	if c.Flags["delete"] && len(records) > 0 {
		ids := make([]int64, len(records))
		for i, r := range records {
			ids[i] = r.ExternalID
		}
		if err := c.Store.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
		return c.Reply(ctx, fmt.Sprintf("deleted %d records", len(ids)))
	}
	return c.Reply(ctx, formatRecords(records))
}

// avoid manages the avoid list: avoid add <name>, avoid remove <name>,
// avoid list.
func (h *Handlers) avoid(ctx context.Context, c *Context) error {
	var name string
	if len(c.Args) > 1 {
		name = strings.Join(c.Args[1:], " ")
	}
	switch strings.ToLower(c.Arg(0)) {
	case "add":
		if name == "" {
			return fmt.Errorf("a name is required")
		}
		if !h.Policy.AddAvoid(name) {
			return c.Reply(ctx, name+" is already avoided")
		}
		return c.Reply(ctx, "avoiding "+name)
	case "remove":
		if name == "" {
			return fmt.Errorf("a name is required")
		}
		if !h.Policy.RemoveAvoid(name) {
			return fmt.Errorf("%s is not on the avoid list", name)
		}
		return c.Reply(ctx, "no longer avoiding "+name)
	case "list":
		avoided := h.Policy.AvoidNames()
		if len(avoided) == 0 {
			return c.Reply(ctx, "the avoid list is empty")
		}
		return c.Reply(ctx, strings.Join(avoided, ", "))
	default:
		return fmt.Errorf("unknown subcommand %q, want add, remove or list", c.Arg(0))
	}
}

func formatRecords(records []*domain.CaughtRecord) string {
	if len(records) == 0 {
		return "no matching records"
	}
	lines := make([]string, 0, len(records)+1)
	for _, r := range records {
		line := fmt.Sprintf("#%d %s lvl %d %.2f%% (%s)",
			r.ExternalID, r.Name, r.Level, r.IV, r.Category)
		if r.Nickname != nil {
			line += " " + *r.Nickname
		}
		lines = append(lines, line)
	}
	lines = append(lines, fmt.Sprintf("%d records", len(records)))
	return strings.Join(lines, "\n")
}
