package domain

import "time"

// Category classifies a caught entity for pinning, trash and report logic.
type Category string

const (
	CategoryCommon    Category = "common"
	CategoryPriority  Category = "priority"
	CategoryLegendary Category = "legendary"
	CategoryShiny     Category = "shiny"
)

// CaughtRecord is the durable log row for one confirmed catch.
// ExternalID identifies the entity on the game server and is unique;
// inserting the same ExternalID twice is a no-op.
type CaughtRecord struct {
	CaughtOn   time.Time
	Name       string
	ExternalID int64
	Level      int
	IV         float64
	Category   Category
	Nickname   *string
}
