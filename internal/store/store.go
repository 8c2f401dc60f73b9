// Package store persists completed check runs. The engine itself owns no
// storage; reports are saved as opaque JSON blobs keyed by run id, with a few
// denormalized columns for listing.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

// ErrRunNotFound is returned by GetReport when no run exists with the id.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Keyword string `json:"keyword,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	ID              string    `json:"id"`
	Keyword         string    `json:"keyword"`
	BusinessName    string    `json:"business_name"`
	GridSize        int       `json:"grid_size"`
	Shape           string    `json:"shape"`
	CompletionRate  float64   `json:"completion_rate"`
	VisibilityScore float64   `json:"visibility_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store defines the persistence interface for check runs.
type Store interface {
	SaveReport(ctx context.Context, report *model.CheckReport) error
	GetReport(ctx context.Context, id string) (*model.CheckReport, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
