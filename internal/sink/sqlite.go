package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/gnasty-chatconv/internal/core"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT NOT NULL PRIMARY KEY,
  input TEXT NOT NULL,
  output TEXT NOT NULL,
  channel TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL DEFAULT '',
  lines INTEGER NOT NULL DEFAULT 0,
  comments INTEGER NOT NULL DEFAULT 0,
  dropped INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'running',
  error TEXT NOT NULL DEFAULT ''
);`,
	`CREATE TABLE IF NOT EXISTS comments (
  id TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  run_id TEXT NOT NULL,
  created_at TEXT NOT NULL,
  offset_seconds INTEGER NOT NULL,
  user_id TEXT NOT NULL,
  display_name TEXT NOT NULL,
  body TEXT NOT NULL,
  fragments_json TEXT NOT NULL DEFAULT '[]',
  badges_json TEXT NOT NULL DEFAULT '[]',
  emotes_json TEXT NOT NULL DEFAULT '[]',
  colour TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (channel_id, id)
);`,
	`CREATE INDEX IF NOT EXISTS comments_run_idx ON comments(run_id);`,
}

const insertComment = `INSERT INTO comments (id, channel_id, run_id, created_at, offset_seconds, user_id, display_name, body,
  fragments_json, badges_json, emotes_json, colour)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(channel_id, id) DO NOTHING;`

// Record is a converted comment tagged with the run that produced it.
type Record struct {
	RunID   string
	Comment core.Comment
}

// Run states stored in runs.status.
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunFailed  = "failed"
)

// Run describes one conversion of an input file.
type Run struct {
	ID         string
	Input      string
	Output     string
	Channel    string
	StartedAt  time.Time
	FinishedAt time.Time
	Lines      int
	Comments   int
	Dropped    int
}

// SQLiteSink archives converted comments across runs. A comment already
// archived for the same channel is left untouched.
type SQLiteSink struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string, tuning bool) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "apply schema")
		}
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	if tuning {
		ApplySQLitePragmas(ctx, db)
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

// RunWriter archives the comments of one run. Nothing it writes is visible
// until Commit; Rollback discards the comments and records the run as failed.
type RunWriter interface {
	BatchWriter
	Commit(ctx context.Context, run Run) error
	Rollback(ctx context.Context, run Run, cause error) error
}

// BeginRun opens the transaction holding run and its comments. The
// transaction outlives ctx; it ends only through Commit or Rollback.
func (s *SQLiteSink) BeginRun(ctx context.Context, run Run) (RunWriter, error) {
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin run")
	}
	const q = `INSERT INTO runs (run_id, input, output, channel, started_at, status) VALUES (?, ?, ?, ?, ?, ?);`
	if _, err := tx.ExecContext(ctx, q, run.ID, run.Input, run.Output, run.Channel, formatTime(run.StartedAt), RunRunning); err != nil {
		_ = tx.Rollback()
		return nil, errors.Wrap(err, "insert run")
	}
	stmt, err := tx.PrepareContext(ctx, insertComment)
	if err != nil {
		_ = tx.Rollback()
		return nil, errors.Wrap(err, "prepare insert")
	}
	return &sqliteRun{sink: s, tx: tx, stmt: stmt}, nil
}

type sqliteRun struct {
	sink *SQLiteSink
	tx   *sql.Tx
	stmt *sql.Stmt

	closed    bool
	committed bool
	failed    bool
}

func (r *sqliteRun) Write(rec Record) error {
	if r.closed {
		return errors.New("run already finished")
	}
	args, err := commentArgs(rec)
	if err != nil {
		return err
	}
	_, err = r.stmt.Exec(args...)
	return errors.Wrapf(err, "insert comment %s", rec.Comment.ID)
}

func (r *sqliteRun) WriteBatch(recs []Record) error {
	for _, rec := range recs {
		if err := r.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqliteRun) close() {
	if !r.closed {
		r.closed = true
		_ = r.stmt.Close()
	}
}

// Commit stores the final counts and makes the run's comments visible.
func (r *sqliteRun) Commit(ctx context.Context, run Run) error {
	if r.closed {
		return errors.New("run already finished")
	}
	r.close()

	const q = `UPDATE runs SET finished_at = ?, lines = ?, comments = ?, dropped = ?, status = ? WHERE run_id = ?;`
	if _, err := r.tx.ExecContext(ctx, q, formatTime(run.FinishedAt), run.Lines, run.Comments, run.Dropped, RunOK, run.ID); err != nil {
		_ = r.tx.Rollback()
		return errors.Wrap(err, "update run")
	}
	if err := r.tx.Commit(); err != nil {
		return errors.Wrap(err, "commit run")
	}
	r.committed = true
	return nil
}

// Rollback discards the run's comments and stores the run as failed with
// cause. It is a no-op once the run has been committed or rolled back.
func (r *sqliteRun) Rollback(ctx context.Context, run Run, cause error) error {
	if r.committed || r.failed {
		return nil
	}
	r.failed = true
	r.close()
	if err := r.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "rollback run")
	}
	return r.sink.recordFailed(context.WithoutCancel(ctx), run, cause)
}

func (s *SQLiteSink) recordFailed(ctx context.Context, run Run, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	const q = `INSERT INTO runs (run_id, input, output, channel, started_at, finished_at, lines, comments, dropped, status, error)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET finished_at = excluded.finished_at, lines = excluded.lines, comments = 0,
  dropped = excluded.dropped, status = excluded.status, error = excluded.error;`
	_, err := s.db.ExecContext(ctx, q, run.ID, run.Input, run.Output, run.Channel, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Lines, run.Dropped, RunFailed, msg)
	return errors.Wrap(err, "record failed run")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// CountComments returns how many comments are archived for a channel id.
func (s *SQLiteSink) CountComments(ctx context.Context, channelID string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE channel_id = ?;`, channelID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

func commentArgs(rec Record) ([]any, error) {
	c := rec.Comment
	fragments, err := json.Marshal(c.Message.Fragments)
	if err != nil {
		return nil, errors.Wrap(err, "encode fragments")
	}
	badges, err := json.Marshal(c.Message.UserBadges)
	if err != nil {
		return nil, errors.Wrap(err, "encode badges")
	}
	emotes, err := json.Marshal(c.Message.Emoticons)
	if err != nil {
		return nil, errors.Wrap(err, "encode emoticons")
	}
	colour := ""
	if c.Message.UserColor != nil {
		colour = *c.Message.UserColor
	}
	return []any{
		c.ID, c.ChannelID, rec.RunID, c.CreatedAt, c.ContentOffsetSeconds, c.Commenter.ID, c.Commenter.DisplayName,
		c.Message.Body, nz(string(fragments), "[]"), nz(string(badges), "[]"), nz(string(emotes), "[]"), colour,
	}, nil
}

func nz(s, def string) string {
	if s == "" || s == "null" {
		return def
	}
	return s
}
