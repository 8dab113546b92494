package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// schemaVersion is stored in PRAGMA user_version once migrations succeed.
const schemaVersion = 2

// migrateSQLite upgrades archives written by older builds. Version 1
// archives have no runs.status or runs.error; their unfinished runs are the
// ones that failed.
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	userVersion, err := sqliteUserVersion(ctx, db)
	if err != nil {
		return errors.Wrap(err, "sqlite: user_version")
	}
	if userVersion >= schemaVersion {
		return nil
	}

	columns, err := sqliteColumns(ctx, db, "runs")
	if err != nil {
		return errors.Wrap(err, "sqlite: describe runs")
	}
	if !columns["status"] {
		if _, err := db.ExecContext(ctx, `ALTER TABLE runs ADD COLUMN status TEXT NOT NULL DEFAULT 'running';`); err != nil {
			return errors.Wrap(err, "sqlite: add runs.status")
		}
		res, err := db.ExecContext(ctx, `UPDATE runs SET status = CASE WHEN finished_at = '' THEN ? ELSE ? END;`, RunFailed, RunOK)
		if err != nil {
			return errors.Wrap(err, "sqlite: backfill runs.status")
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			slog.Info("sink: sqlite: backfilled run status", "rows", n)
		}
	}
	if !columns["error"] {
		if _, err := db.ExecContext(ctx, `ALTER TABLE runs ADD COLUMN error TEXT NOT NULL DEFAULT '';`); err != nil {
			return errors.Wrap(err, "sqlite: add runs.error")
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return errors.Wrap(err, "sqlite: set user_version")
	}
	slog.Debug("sink: sqlite: migrated", "from", userVersion, "to", schemaVersion)
	return nil
}

func sqliteUserVersion(ctx context.Context, db *sql.DB) (int, error) {
	var userVersion int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&userVersion); err != nil {
		return 0, err
	}
	return userVersion, nil
}

// sqliteColumns returns the lower-cased column names of table.
func sqliteColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		out[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return out, rows.Err()
}
