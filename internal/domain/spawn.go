package domain

import "time"

// SpawnEvent is one inbound wild-spawn notification. It lives for exactly
// one pipeline run and is never persisted.
type SpawnEvent struct {
	ChannelID string
	MessageID string
	ImageURL  string
	Content   string
	SeenAt    time.Time
}

// Classification is the classifier's verdict for one spawn image.
type Classification struct {
	Label      string
	Confidence float64 // in [0, 1]
}
