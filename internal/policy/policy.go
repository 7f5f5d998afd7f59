// Package policy holds the catch decision functions.
package policy

import (
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Config are the knobs the decision functions consult.
type Config struct {
	PriorityNames      []string
	AvoidNames         []string
	CatchRate          int // percent
	DelayOnPriority    bool
	RestrictDuplicates bool
	MaxDuplicates      int
}

// Snapshot is the slice of session state the decisions depend on.
type Snapshot struct {
	Sleeping     bool
	PriorityOnly bool
}

// Policy evaluates whether and how a classified spawn is acted on.
type Policy struct {
	cfg   Config
	index *NameIndex
	log   zerolog.Logger

	// avoid is the runtime copy of the avoid list. Command handlers
	// mutate it while the pipeline reads it.
	avoidMu sync.RWMutex
	avoid   map[string]bool

	// draw returns a uniform value in [1, 100]. Settable for tests.
	draw func() int
}

func New(cfg Config, index *NameIndex, log zerolog.Logger) *Policy {
	avoid := make(map[string]bool, len(cfg.AvoidNames))
	for _, n := range cfg.AvoidNames {
		avoid[strings.ToLower(n)] = true
	}
	return &Policy{
		cfg:   cfg,
		index: index,
		log:   log.With().Str("component", "policy").Logger(),
		avoid: avoid,
		draw:  func() int { return rand.IntN(100) + 1 },
	}
}

// IsAvoided reports whether name is on the avoid list.
func (p *Policy) IsAvoided(name string) bool {
	p.avoidMu.RLock()
	defer p.avoidMu.RUnlock()
	return p.avoid[strings.ToLower(name)]
}

// AddAvoid puts name on the avoid list. It reports whether the name
// was newly added.
func (p *Policy) AddAvoid(name string) bool {
	p.avoidMu.Lock()
	defer p.avoidMu.Unlock()
	key := strings.ToLower(name)
	if p.avoid[key] {
		return false
	}
	p.avoid[key] = true
	return true
}

// RemoveAvoid takes name off the avoid list. It reports whether the
// name was on it.
func (p *Policy) RemoveAvoid(name string) bool {
	p.avoidMu.Lock()
	defer p.avoidMu.Unlock()
	key := strings.ToLower(name)
	if !p.avoid[key] {
		return false
	}
	delete(p.avoid, key)
	return true
}

// AvoidNames returns the avoid list in sorted order.
func (p *Policy) AvoidNames() []string {
	p.avoidMu.RLock()
	defer p.avoidMu.RUnlock()
	names := make([]string, 0, len(p.avoid))
	for n := range p.avoid {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsRanked reports whether name is in the legendary/mythical/ultra-rare
// tier.
func (p *Policy) IsRanked(name string) bool {
	return p.index.Ranked(name)
}

// IsPriority reports whether name is in the user's priority list.
func (p *Policy) IsPriority(name string) bool {
	for _, n := range p.cfg.PriorityNames {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func (p *Policy) isPrioritized(name string) bool {
	return p.IsRanked(name) || p.IsPriority(name)
}

// ShouldDelay reports whether the courtesy delay applies. Prioritized
// names skip it unless delay-on-priority is configured.
func (p *Policy) ShouldDelay(name string) bool {
	if p.isPrioritized(name) {
		return p.cfg.DelayOnPriority
	}
	return true
}

// IsDuplicate reports whether name is over the duplicate cap. count is
// the persisted number of records for the name. Prioritized names are
// never duplicates.
func (p *Policy) IsDuplicate(name string, count int) bool {
	return !p.isPrioritized(name) &&
		p.cfg.RestrictDuplicates &&
		count > p.cfg.MaxDuplicates
}

// ShouldCatch decides whether the spawn is attempted. Prioritized
// names always pass; everything else is gated by the catch-rate draw,
// sleep mode, the avoid list, priority-only mode and the duplicate cap.
func (p *Policy) ShouldCatch(name string, snap Snapshot, count int) bool {
	if p.isPrioritized(name) {
		return true
	}
	if snap.PriorityOnly || snap.Sleeping {
		return false
	}
	if p.draw() > p.cfg.CatchRate {
		return false
	}
	if p.IsAvoided(name) {
		return false
	}
	if p.IsDuplicate(name, count) {
		p.log.Info().Str("name", name).Int("count", count).
			Msg("skipping the duplicate")
		return false
	}
	return true
}
