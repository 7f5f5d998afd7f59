// Package stats accumulates catch telemetry.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Miss is one failed catch attempt.
type Miss struct {
	Name   string
	Reason string
	At     time.Time
}

// Report is a point-in-time snapshot of the accumulator.
type Report struct {
	Uptime        time.Duration
	Spawns        int
	Catches       int
	Misses        int
	Accuracy      float64
	PerSecond     float64
	PerMinute     float64
	PerHour       float64
	MostCommon    string
	MostSpawned   string
	ConfidenceAvg float64
	MissLog       []Miss
}

// Accumulator collects spawn, catch and miss counters.
type Accumulator struct {
	mu        sync.Mutex
	startedAt time.Time

	spawns       int
	catches      int
	misses       int
	spawnsByName map[string]int
	byName       map[string]int

	confidenceAvg float64
	confidenceSet bool

	missLog []Miss
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		startedAt:    time.Now(),
		spawnsByName: make(map[string]int),
		byName:       make(map[string]int),
	}
}

// RecordSpawn counts a classified spawn under its name and folds the
// confidence into the running average.
func (a *Accumulator) RecordSpawn(name string, confidence float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.spawns++
	a.spawnsByName[name]++
	if a.confidenceSet {
		a.confidenceAvg = (a.confidenceAvg + confidence) / 2
	} else {
		a.confidenceAvg = confidence
		a.confidenceSet = true
	}
}

func (a *Accumulator) RecordCatch(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.catches++
	a.byName[name]++
}

func (a *Accumulator) RecordMiss(name, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.misses++
	a.missLog = append(a.missLog, Miss{Name: name, Reason: reason, At: time.Now()})
}

// Snapshot returns the current counters and derived rates.
func (a *Accumulator) Snapshot() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	uptime := time.Since(a.startedAt)
	r := Report{
		Uptime:        uptime,
		Spawns:        a.spawns,
		Catches:       a.catches,
		Misses:        a.misses,
		ConfidenceAvg: a.confidenceAvg,
		MissLog:       append([]Miss(nil), a.missLog...),
	}

	if attempts := a.catches + a.misses; attempts > 0 {
		r.Accuracy = float64(a.catches) / float64(attempts)
	}
	if secs := uptime.Seconds(); secs > 0 {
		r.PerSecond = float64(a.catches) / secs
		r.PerMinute = r.PerSecond * 60
		r.PerHour = r.PerSecond * 3600
	}

	r.MostCommon = mostFrequent(a.byName)
	r.MostSpawned = mostFrequent(a.spawnsByName)

	return r
}

func mostFrequent(counts map[string]int) string {
	best := 0
	name := ""
	for n, count := range counts {
		if count > best || (count == best && name == "") {
			best = count
			name = n
		}
	}
	return name
}

// RunCheckpointer logs a summary on every tick while enabled reports
// true. It returns when ctx is cancelled.
func (a *Accumulator) RunCheckpointer(ctx context.Context, interval time.Duration, enabled func() bool, log zerolog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !enabled() {
				continue
			}
			r := a.Snapshot()
			log.Info().
				Int("spawns", r.Spawns).
				Int("catches", r.Catches).
				Int("misses", r.Misses).
				Float64("accuracy", r.Accuracy).
				Float64("per_hour", r.PerHour).
				Str("most_common", r.MostCommon).
				Str("most_spawned", r.MostSpawned).
				Float64("confidence_avg", r.ConfidenceAvg).
				Msg("catch statistics checkpoint")
		}
	}
}
