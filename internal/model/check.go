// Package model defines the data structures shared across the rank tracking engine.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Shape selects the footprint of a sampling grid.
type Shape int

const (
	// Square keeps every point of the N×N lattice.
	Square Shape = iota + 1
	// Circular drops lattice points outside the inscribed circle.
	Circular
)

// String returns the human-readable shape name.
func (s Shape) String() string {
	switch s {
	case Square:
		return "square"
	case Circular:
		return "circular"
	default:
		return "unknown"
	}
}

// ParseShape converts a string into a Shape.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "square":
		return Square, nil
	case "circular", "circle":
		return Circular, nil
	default:
		return 0, eris.Errorf("unknown grid shape: %q (valid: square, circular)", s)
	}
}

// GridPoint is one sampled geographic coordinate. Points are immutable once
// generated; ids are assigned row*N+col+1 so the same request always addresses
// the same conceptual cell.
type GridPoint struct {
	ID  int     `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ErrorKind classifies why a grid point produced no usable result.
// Unranked is deliberately not an ErrorKind: a query that completed and found
// no trace of the business is a successful query.
type ErrorKind string

const (
	// ErrSubmissionFailed means the provider rejected or was unreachable at
	// submit time.
	ErrSubmissionFailed ErrorKind = "submission_failed"
	// ErrTimedOut means the task exceeded its deadline without a usable result.
	ErrTimedOut ErrorKind = "timed_out"
	// ErrMalformedResponse means the provider returned data outside the
	// expected shape.
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// GridResult is the outcome of one rank query at one grid point.
// Rank 0 with an empty Error means the business was legitimately absent from
// the result set (unranked); a non-empty Error means the query itself never
// completed.
type GridResult struct {
	Point        GridPoint `json:"point"`
	Rank         int       `json:"rank"`
	SearchVolume int       `json:"search_volume,omitempty"`
	Error        ErrorKind `json:"error,omitempty"`
}

// Resolved reports whether the query completed, ranked or not.
func (r GridResult) Resolved() bool {
	return r.Error == ""
}

// Ranked reports whether the business appeared in the result set.
func (r GridResult) Ranked() bool {
	return r.Error == "" && r.Rank > 0
}

// Distribution bucket labels, in display order.
const (
	BucketTop3   = "1-3"
	BucketPage1  = "4-10"
	BucketPage2  = "11-20"
	BucketBeyond = ">20"
)

// AggregateMetrics summarizes a completed grid. Derived data only; recomputed
// from the full GridResult set each time.
type AggregateMetrics struct {
	// AFPR is the mean rank over points ranked in the top 10. Zero with
	// AFPRDefined=false when no point ranks on page one.
	AFPR        float64 `json:"afpr"`
	AFPRDefined bool    `json:"afpr_defined"`
	// GRM is the mean rank over all ranked points.
	GRM float64 `json:"grm"`
	// TSS is the percentage of ranked points in positions 1-3.
	TSS float64 `json:"tss"`
	// VisibilityScore is a 0-100 composite of AFPR, GRM, and TSS.
	VisibilityScore float64 `json:"visibility_score"`
	// Distribution holds integer percentages (round-half-up per bucket) of
	// resolved points across the four rank buckets. Unranked points count
	// toward ">20". May not sum to exactly 100 due to rounding.
	Distribution map[string]int `json:"distribution"`
	TopPoints    []GridResult   `json:"top_points"`
	WeakPoints   []GridResult   `json:"weak_points"`
}

// CheckRequest describes one geo-grid rank check. All geography and identity
// is passed explicitly; the engine holds no ambient campaign state.
type CheckRequest struct {
	Keyword      string        `json:"keyword"`
	BusinessName string        `json:"business_name"`
	CenterLat    float64       `json:"center_lat"`
	CenterLng    float64       `json:"center_lng"`
	RadiusKM     float64       `json:"radius_km"`
	GridSize     int           `json:"grid_size"`
	Shape        Shape         `json:"shape"`
	Concurrency  int           `json:"concurrency"`
	Deadline     time.Duration `json:"deadline"`
}

// Validate checks the request before any dispatch occurs.
func (r CheckRequest) Validate() error {
	if r.Keyword == "" {
		return eris.New("check: keyword is required")
	}
	if r.BusinessName == "" {
		return eris.New("check: business_name is required")
	}
	if r.GridSize <= 0 {
		return eris.Errorf("check: grid_size must be positive, got %d", r.GridSize)
	}
	if r.RadiusKM < 0 {
		return eris.Errorf("check: radius_km must be non-negative, got %f", r.RadiusKM)
	}
	if r.Shape != Square && r.Shape != Circular {
		return eris.Errorf("check: invalid shape %d", r.Shape)
	}
	if r.CenterLat < -90 || r.CenterLat > 90 {
		return eris.Errorf("check: center_lat out of range: %f", r.CenterLat)
	}
	if r.CenterLng < -180 || r.CenterLng > 180 {
		return eris.Errorf("check: center_lng out of range: %f", r.CenterLng)
	}
	return nil
}

// CheckReport is the complete outcome of one grid check.
type CheckReport struct {
	ID             string           `json:"id"`
	Request        CheckRequest     `json:"request"`
	Results        []GridResult     `json:"results"`
	Metrics        AggregateMetrics `json:"metrics"`
	CompletionRate float64          `json:"completion_rate"`
	StartedAt      time.Time        `json:"started_at"`
	Duration       time.Duration    `json:"duration"`
}
