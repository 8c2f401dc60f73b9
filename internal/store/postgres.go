package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/localpulse/rankgrid-cli/internal/db"
	"github.com/localpulse/rankgrid-cli/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS check_runs (
	id              TEXT PRIMARY KEY,
	keyword         TEXT NOT NULL,
	business        TEXT NOT NULL,
	grid_size       INTEGER NOT NULL,
	shape           TEXT NOT NULL,
	completion_rate DOUBLE PRECISION NOT NULL,
	visibility      DOUBLE PRECISION NOT NULL,
	report          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_check_runs_keyword ON check_runs(keyword);
CREATE INDEX IF NOT EXISTS idx_check_runs_created ON check_runs(created_at);
`

// Migrate creates the schema if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// SaveReport stores a completed check run.
func (s *PostgresStore) SaveReport(ctx context.Context, report *model.CheckReport) error {
	blob, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO check_runs (id, keyword, business, grid_size, shape, completion_rate, visibility, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		report.ID,
		report.Request.Keyword,
		report.Request.BusinessName,
		report.Request.GridSize,
		report.Request.Shape.String(),
		report.CompletionRate,
		report.Metrics.VisibilityScore,
		blob,
		report.StartedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", report.ID)
	}
	return nil
}

// GetReport loads a run by id.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.CheckReport, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM check_runs WHERE id = $1`, id).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}

	var report model.CheckReport
	if err := json.Unmarshal(blob, &report); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode run %s", id)
	}
	return &report, nil
}

// ListRuns returns run summaries, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if filter.Keyword != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, keyword, business, grid_size, shape, completion_rate, visibility, created_at
			 FROM check_runs WHERE keyword = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			filter.Keyword, limit, filter.Offset)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, keyword, business, grid_size, shape, completion_rate, visibility, created_at
			 FROM check_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, filter.Offset)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Keyword, &r.BusinessName, &r.GridSize, &r.Shape,
			&r.CompletionRate, &r.VisibilityScore, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return out, nil
}

// PruneOlderThan deletes runs older than the given age.
func (s *PostgresStore) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	tag, err := s.pool.Exec(ctx, `DELETE FROM check_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune runs")
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
