package ingesttrace

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Stage represents a pipeline stage a line can reach.
type Stage string

const (
	StageSeen      Stage = "seen"
	StageConverted Stage = "converted"
	StageArchived  Stage = "archived"

	StageDroppedPrefix = "dropped_"
)

// StageDropped creates a Stage for a line dropped for the given reason.
func StageDropped(reason string) Stage {
	return Stage(StageDroppedPrefix + reason)
}

// RunTrace counts how many lines of one conversion run reached each stage.
type RunTrace struct {
	RunID   string
	Input   string
	Channel string
	Digest  string

	mu       sync.Mutex
	counters map[Stage]int64
}

// NewRunTrace starts a trace for input whose content is data.
func NewRunTrace(runID, input, channel string, data []byte) *RunTrace {
	return &RunTrace{
		RunID:    runID,
		Input:    input,
		Channel:  channel,
		Digest:   Digest(data),
		counters: make(map[Stage]int64),
	}
}

// IncCounter increments the counter for the provided stage and returns the updated value.
func (t *RunTrace) IncCounter(stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[stage]++
	return t.counters[stage]
}

// Count returns the current value for stage.
func (t *RunTrace) Count(stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[stage]
}

// Dropped sums every dropped_* stage.
func (t *RunTrace) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int64
	for stage, count := range t.counters {
		if strings.HasPrefix(string(stage), StageDroppedPrefix) {
			n += count
		}
	}
	return n
}

// LogTrace logs the trace metadata and counters using structured logging.
func (t *RunTrace) LogTrace(logger *slog.Logger, msg string) {
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"run_id", t.RunID,
		"input", t.Input,
		"channel", t.Channel,
		"digest", t.Digest,
	}
	snapshot := t.snapshotCounters()
	stages := make([]string, 0, len(snapshot))
	for stage := range snapshot {
		stages = append(stages, string(stage))
	}
	sort.Strings(stages)
	for _, stage := range stages {
		attrs = append(attrs, stage, snapshot[Stage(stage)])
	}
	logger.Info(msg, attrs...)
}

func (t *RunTrace) snapshotCounters() map[Stage]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	copy := make(map[Stage]int64, len(t.counters))
	for stage, count := range t.counters {
		copy[stage] = count
	}

	return copy
}

// Digest is the hex SHA-256 of an input file's content.
func Digest(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
