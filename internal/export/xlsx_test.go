package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

func sampleReport() *model.CheckReport {
	return &model.CheckReport{
		ID: "run-1",
		Request: model.CheckRequest{
			Keyword:      "pizza near me",
			BusinessName: "Joe's Pizza",
			CenterLat:    40.7128,
			CenterLng:    -74.0060,
			RadiusKM:     5,
			GridSize:     2,
			Shape:        model.Square,
		},
		Results: []model.GridResult{
			{Point: model.GridPoint{ID: 1, Lat: 40.75, Lng: -74.05}, Rank: 2, SearchVolume: 880},
			{Point: model.GridPoint{ID: 2, Lat: 40.75, Lng: -74.00}, Rank: 0},
			{Point: model.GridPoint{ID: 3, Lat: 40.67, Lng: -74.05}, Error: model.ErrTimedOut},
			{Point: model.GridPoint{ID: 4, Lat: 40.67, Lng: -74.00}, Rank: 14},
		},
		Metrics: model.AggregateMetrics{
			AFPR:            2,
			AFPRDefined:     true,
			GRM:             8,
			TSS:             50,
			VisibilityScore: 60.2,
			Distribution: map[string]int{
				model.BucketTop3:   33,
				model.BucketPage1:  0,
				model.BucketPage2:  33,
				model.BucketBeyond: 33,
			},
		},
		CompletionRate: 0.75,
		StartedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(sampleReport(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, "Summary", f.Sheets[0].Name)
	assert.Equal(t, "Grid", f.Sheets[1].Name)

	summary := f.Sheets[0]
	assert.Equal(t, "Run ID", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "run-1", summary.Rows[0].Cells[1].String())
	assert.Equal(t, "pizza near me", summary.Rows[1].Cells[1].String())
	assert.Equal(t, "2x2 square", summary.Rows[5].Cells[1].String())
	assert.Equal(t, "75%", summary.Rows[7].Cells[1].String())
	assert.Equal(t, "2.00", summary.Rows[9].Cells[1].String())

	grid := f.Sheets[1]
	require.Len(t, grid.Rows, 5) // header + 4 points
	assert.Equal(t, "Point", grid.Rows[0].Cells[0].String())
	assert.Equal(t, "2", grid.Rows[1].Cells[3].String())
	assert.Equal(t, "unranked", grid.Rows[2].Cells[3].String())
	assert.Equal(t, "-", grid.Rows[3].Cells[3].String())
	assert.Equal(t, "timed_out", grid.Rows[3].Cells[5].String())
	assert.Equal(t, "14", grid.Rows[4].Cells[3].String())
}

func TestWriteXLSX_AFPRUndefined(t *testing.T) {
	report := sampleReport()
	report.Metrics.AFPRDefined = false
	report.Metrics.AFPR = 0

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(report, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, "n/a", f.Sheets[0].Rows[9].Cells[1].String())
}

func TestWriteXLSX_BadPath(t *testing.T) {
	assert.Error(t, WriteXLSX(sampleReport(), filepath.Join(t.TempDir(), "missing", "report.xlsx")))
}
