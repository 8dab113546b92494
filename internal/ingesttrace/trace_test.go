package ingesttrace

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestDeterminism(t *testing.T) {
	first := NewRunTrace("r1", "chat.txt", "forsen", []byte("hello world"))
	second := NewRunTrace("r2", "chat.txt", "forsen", []byte("hello world"))
	assert.Equal(t, first.Digest, second.Digest)

	different := NewRunTrace("r3", "chat.txt", "forsen", []byte("hello mars"))
	assert.NotEqual(t, first.Digest, different.Digest)
	assert.Len(t, first.Digest, 64)
}

func TestCounterIncrements(t *testing.T) {
	trace := NewRunTrace("r1", "chat.txt", "forsen", nil)

	assert.Equal(t, int64(1), trace.IncCounter(StageSeen))
	assert.Equal(t, int64(1), trace.IncCounter(StageDropped("missing_tag")))
	assert.Equal(t, int64(2), trace.IncCounter(StageDropped("missing_tag")))
	assert.Equal(t, int64(1), trace.IncCounter(StageDropped("no_separator")))
	assert.Equal(t, int64(1), trace.IncCounter(StageConverted))

	assert.Equal(t, int64(3), trace.Dropped())
	assert.Equal(t, int64(1), trace.Count(StageConverted))
	assert.Equal(t, int64(0), trace.Count(StageArchived))
}

func TestLogTrace(t *testing.T) {
	var buf bytes.Buffer
	trace := NewRunTrace("r1", "chat.txt", "forsen", []byte("x"))
	trace.IncCounter(StageSeen)
	trace.IncCounter(StageDropped("bad_timestamp"))

	trace.LogTrace(slog.New(slog.NewTextHandler(&buf, nil)), "chatconv: run finished")
	out := buf.String()
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "seen=1")
	assert.Contains(t, out, "dropped_bad_timestamp=1")
}
