package domain

import (
	"fmt"
	"strings"
	"time"
)

// Listing is one parsed market listing line.
type Listing struct {
	MarketID  string
	Level     int
	Name      string
	IVPercent float64
	Price     int64
	Shiny     bool
}

// SnipeFilter describes what a sniper task is hunting for. Two filters with
// the same Key describe the same hunt; registering a duplicate replaces the
// running task instead of starting a second poller.
type SnipeFilter struct {
	Name         string
	Shiny        bool
	IVMin        float64
	MaxInvest    int64
	MaxUnitPrice int64
	Interval     time.Duration
	Markup       int // percent, flip variant only
}

// Key returns the canonical identity string for the filter.
func (f SnipeFilter) Key() string {
	return fmt.Sprintf("%s|shiny=%t|iv>%.2f|invest=%d|unit=%d",
		strings.ToLower(f.Name), f.Shiny, f.IVMin, f.MaxInvest, f.MaxUnitPrice)
}

// PriceSample is one observed (listing, price) point for a tracked name.
type PriceSample struct {
	Name       string
	MarketID   string
	Price      int64
	Shiny      bool
	ObservedAt time.Time
}
