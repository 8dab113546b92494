// Package converter runs one conversion of a chat log: read, transform,
// archive, write, and account for every line.
package converter

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/you/gnasty-chatconv/internal/convert"
	"github.com/you/gnasty-chatconv/internal/export"
	"github.com/you/gnasty-chatconv/internal/ingesttrace"
	"github.com/you/gnasty-chatconv/internal/metrics"
	"github.com/you/gnasty-chatconv/internal/sink"
	"github.com/you/gnasty-chatconv/internal/twitchirc"
	"github.com/you/gnasty-chatconv/internal/watcher"
)

// Archive persists converted comments together with run bookkeeping.
type Archive interface {
	BeginRun(ctx context.Context, run sink.Run) (sink.RunWriter, error)
}

type commentCounter interface {
	CountComments(ctx context.Context, channelID string) (int64, error)
}

type Options struct {
	Channel string
	// Output overrides the derived <input>_new.json path.
	Output       string
	DropLogEvery int
	BatchSize    int
	Archive      Archive
	Metrics      *metrics.Metrics
	MetricsFile  string
	Logger       *slog.Logger
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Input      string
	Output     string
	Digest     string
	Lines      int
	Comments   int
	Dropped    int
	OutOfOrder int
	Drops      map[string]int
	Duration   time.Duration
	// Skipped is set by RunIfChanged when the input content was already converted.
	Skipped bool
}

type Converter struct {
	opts   Options
	tr     *convert.Transformer
	logger *slog.Logger

	lastDigest string
}

func New(opts Options) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		opts:   opts,
		tr:     convert.NewTransformer(opts.Channel),
		logger: logger,
	}
}

// OutputPath is where a run over input writes its archive.
func (c *Converter) OutputPath(input string) string {
	if c.opts.Output != "" {
		return c.opts.Output
	}
	return export.OutputPath(input)
}

// RunIfChanged converts input unless its content matches the last
// successful run.
func (c *Converter) RunIfChanged(ctx context.Context, input string) (Report, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return Report{}, errors.Wrap(err, "read input")
	}
	if c.lastDigest != "" && ingesttrace.Digest(data) == c.lastDigest {
		c.logger.Debug("chatconv: input unchanged", "input", input)
		return Report{Input: input, Output: c.OutputPath(input), Digest: c.lastDigest, Skipped: true}, nil
	}
	return c.convert(ctx, input, data)
}

// Run converts input once.
func (c *Converter) Run(ctx context.Context, input string) (Report, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return Report{}, errors.Wrap(err, "read input")
	}
	return c.convert(ctx, input, data)
}

// Watch runs the conversion once, then again every time input changes,
// until ctx is done.
func (c *Converter) Watch(ctx context.Context, input string) error {
	if _, err := c.RunIfChanged(ctx, input); err != nil {
		c.logger.Error("chatconv: initial run failed", "input", input, "err", err)
	}
	return watcher.Watch(ctx, input, watcher.DefaultDebounce, func(ctx context.Context) error {
		_, err := c.RunIfChanged(ctx, input)
		return err
	})
}

func (c *Converter) convert(ctx context.Context, input string, data []byte) (rep Report, err error) {
	started := time.Now()
	rep = Report{
		RunID:  uuid.NewString(),
		Input:  input,
		Output: c.OutputPath(input),
	}
	trace := ingesttrace.NewRunTrace(rep.RunID, input, c.tr.Channel(), data)
	rep.Digest = trace.Digest

	defer func() {
		rep.Duration = time.Since(started)
		c.opts.Metrics.ObserveRun(rep.Duration, rep.Comments, err)
		if werr := c.opts.Metrics.WriteFile(c.opts.MetricsFile); werr != nil {
			if err == nil {
				err = werr
				return
			}
			c.logger.Error("chatconv: metrics", "err", werr)
		}
	}()

	run := sink.Run{
		ID:        rep.RunID,
		Input:     input,
		Output:    rep.Output,
		Channel:   c.tr.Channel(),
		StartedAt: started,
	}
	var (
		runWriter sink.RunWriter
		archive   *sink.BufferedWriter
	)
	if c.opts.Archive != nil {
		if runWriter, err = c.opts.Archive.BeginRun(ctx, run); err != nil {
			return rep, errors.Wrap(err, "archive")
		}
		archive = sink.NewBufferedWriter(runWriter, sink.BufferedOptions{BatchSize: c.opts.BatchSize})
		defer func() {
			if err == nil {
				return
			}
			run.FinishedAt = time.Now()
			run.Lines, run.Dropped = int(trace.Count(ingesttrace.StageSeen)), int(trace.Dropped())
			if rerr := runWriter.Rollback(ctx, run, err); rerr != nil {
				c.logger.Error("chatconv: archive rollback", "run_id", run.ID, "err", rerr)
			}
		}()
	}

	drops := twitchirc.NewDropLogger(c.logger, c.opts.DropLogEvery)
	builder := export.NewBuilder(c.tr)

	for i, line := range export.SplitLines(data) {
		if err := ctx.Err(); err != nil {
			return rep, errors.Wrap(err, "conversion interrupted")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		trace.IncCounter(ingesttrace.StageSeen)
		c.opts.Metrics.IncLines()

		res := builder.Add(i+1, line)
		if !res.OK() {
			reason := res.Reason()
			drops.Note(res.LineNo, reason, line, res.Err)
			trace.IncCounter(ingesttrace.StageDropped(reason))
			c.opts.Metrics.IncDropped(reason)
			continue
		}
		trace.IncCounter(ingesttrace.StageConverted)
		c.opts.Metrics.IncComments()

		if archive != nil {
			if err := archive.Write(sink.Record{RunID: rep.RunID, Comment: res.Comment}); err != nil {
				return rep, errors.Wrap(err, "archive")
			}
			trace.IncCounter(ingesttrace.StageArchived)
			c.opts.Metrics.IncArchived()
		}
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			return rep, errors.Wrap(err, "archive")
		}
	}

	rep.Lines = int(trace.Count(ingesttrace.StageSeen))
	rep.Comments = builder.Len()
	rep.Dropped = int(trace.Dropped())
	rep.OutOfOrder = builder.OutOfOrder()
	rep.Drops = drops.Totals()
	drops.Flush()

	if rep.OutOfOrder > 0 {
		c.logger.Warn("chatconv: comments out of order", "count", rep.OutOfOrder)
		c.opts.Metrics.AddOutOfOrder(rep.OutOfOrder)
	}

	doc := builder.Document()
	if err := export.WriteFile(rep.Output, doc); err != nil {
		return rep, err
	}

	if runWriter != nil {
		run.FinishedAt = time.Now()
		run.Lines, run.Comments, run.Dropped = rep.Lines, rep.Comments, rep.Dropped
		if err := runWriter.Commit(ctx, run); err != nil {
			return rep, errors.Wrap(err, "archive")
		}
		if counter, ok := c.opts.Archive.(commentCounter); ok && doc.Streamer != nil {
			if n, err := counter.CountComments(ctx, doc.Streamer.ID); err == nil {
				c.logger.Info("chatconv: archive updated", "channel_id", doc.Streamer.ID, "archived", n)
			}
		}
	}

	c.lastDigest = rep.Digest
	trace.LogTrace(c.logger, "chatconv: run finished")
	c.logger.Info("chatconv: wrote archive",
		"input", input,
		"output", rep.Output,
		"comments", rep.Comments,
		"dropped", rep.Dropped,
	)
	return rep, nil
}
