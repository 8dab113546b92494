package convert

import (
	"github.com/pkg/errors"

	"github.com/you/gnasty-chatconv/internal/core"
	"github.com/you/gnasty-chatconv/internal/twitchirc"
)

// Result is the outcome of converting one input line: a comment, or the
// reason the line was dropped.
type Result struct {
	LineNo  int
	Raw     string
	SentMs  int64
	Comment core.Comment
	Err     error
}

func (r Result) OK() bool { return r.Err == nil }

// Reason labels a failed result for logs and metrics; "" when OK.
func (r Result) Reason() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ErrChannelMarker):
		return "channel_marker"
	case errors.Is(r.Err, ErrBadTimestamp):
		return "bad_timestamp"
	default:
		return twitchirc.Reason(r.Err)
	}
}

// Line parses and transforms one raw line. The baseline only moves when the
// line converts successfully.
func (t *Transformer) Line(lineNo int, raw string, base Baseline) (Result, Baseline) {
	res := Result{LineNo: lineNo, Raw: raw}
	tags, err := twitchirc.ParseLine(raw)
	if err != nil {
		res.Err = err
		return res, base
	}
	comment, next, err := t.Transform(tags, base)
	if err != nil {
		res.Err = err
		return res, base
	}
	res.Comment = comment
	res.SentMs, _ = sentMs(tags)
	return res, next
}
