package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS check_runs (
	id              TEXT PRIMARY KEY,
	keyword         TEXT NOT NULL,
	business        TEXT NOT NULL,
	grid_size       INTEGER NOT NULL,
	shape           TEXT NOT NULL,
	completion_rate REAL NOT NULL,
	visibility      REAL NOT NULL,
	report          TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_check_runs_keyword ON check_runs(keyword);
CREATE INDEX IF NOT EXISTS idx_check_runs_created ON check_runs(created_at);
`

// Migrate creates the schema if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// SaveReport stores a completed check run.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *model.CheckReport) error {
	blob, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO check_runs (id, keyword, business, grid_size, shape, completion_rate, visibility, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.Request.Keyword,
		report.Request.BusinessName,
		report.Request.GridSize,
		report.Request.Shape.String(),
		report.CompletionRate,
		report.Metrics.VisibilityScore,
		string(blob),
		report.StartedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", report.ID)
	}
	return nil
}

// GetReport loads a run by id.
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.CheckReport, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM check_runs WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}

	var report model.CheckReport
	if err := json.Unmarshal([]byte(blob), &report); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode run %s", id)
	}
	return &report, nil
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, keyword, business, grid_size, shape, completion_rate, visibility, created_at
		FROM check_runs`
	args := []any{}
	if filter.Keyword != "" {
		query += ` WHERE keyword = ?`
		args = append(args, filter.Keyword)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Keyword, &r.BusinessName, &r.GridSize, &r.Shape,
			&r.CompletionRate, &r.VisibilityScore, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return out, nil
}

// PruneOlderThan deletes runs older than the given age.
func (s *SQLiteStore) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	res, err := s.db.ExecContext(ctx, `DELETE FROM check_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune runs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune rows affected")
	}
	return n, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
