package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleReport(id, keyword string) *model.CheckReport {
	return &model.CheckReport{
		ID: id,
		Request: model.CheckRequest{
			Keyword:      keyword,
			BusinessName: "Joe's Pizza",
			CenterLat:    40.7128,
			CenterLng:    -74.0060,
			RadiusKM:     5,
			GridSize:     3,
			Shape:        model.Square,
		},
		Results: []model.GridResult{
			{Point: model.GridPoint{ID: 1, Lat: 40.75, Lng: -74.05}, Rank: 2, SearchVolume: 880},
			{Point: model.GridPoint{ID: 2, Lat: 40.75, Lng: -74.00}, Rank: 0},
			{Point: model.GridPoint{ID: 3, Lat: 40.75, Lng: -73.95}, Error: model.ErrTimedOut},
		},
		Metrics: model.AggregateMetrics{
			AFPR:            2,
			AFPRDefined:     true,
			GRM:             2,
			TSS:             100,
			VisibilityScore: 71.5,
			Distribution:    map[string]int{model.BucketTop3: 50, model.BucketBeyond: 50},
		},
		CompletionRate: 2.0 / 3.0,
		StartedAt:      time.Now().UTC().Truncate(time.Second),
		Duration:       42 * time.Second,
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	want := sampleReport("run-1", "pizza near me")
	require.NoError(t, st.SaveReport(ctx, want))

	got, err := st.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Request, got.Request)
	assert.Equal(t, want.Results, got.Results)
	assert.Equal(t, want.Metrics, got.Metrics)
	assert.InDelta(t, want.CompletionRate, got.CompletionRate, 1e-9)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	st := newTestSQLite(t)

	_, err := st.GetReport(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.SaveReport(ctx, sampleReport("run-1", "pizza")))
	assert.Error(t, st.SaveReport(ctx, sampleReport("run-1", "pizza")))
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	for i, keyword := range []string{"pizza", "plumber", "pizza"} {
		r := sampleReport(string(rune('a'+i)), keyword)
		r.StartedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.SaveReport(ctx, r))
	}

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest first")
	assert.Equal(t, "Joe's Pizza", runs[0].BusinessName)
	assert.Equal(t, "square", runs[0].Shape)

	runs, err = st.ListRuns(ctx, RunFilter{Keyword: "pizza"})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteStore_PruneOlderThan(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	old := sampleReport("old-run", "pizza")
	old.StartedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, st.SaveReport(ctx, old))

	fresh := sampleReport("fresh-run", "pizza")
	fresh.StartedAt = time.Now().UTC()
	require.NoError(t, st.SaveReport(ctx, fresh))

	n, err := st.PruneOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = st.GetReport(ctx, "old-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = st.GetReport(ctx, "fresh-run")
	assert.NoError(t, err)
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	st := newTestSQLite(t)
	assert.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, st.Migrate(context.Background()))
}
