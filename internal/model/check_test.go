package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShape(t *testing.T) {
	shape, err := ParseShape("square")
	require.NoError(t, err)
	assert.Equal(t, Square, shape)

	shape, err = ParseShape("circular")
	require.NoError(t, err)
	assert.Equal(t, Circular, shape)

	shape, err = ParseShape("circle")
	require.NoError(t, err)
	assert.Equal(t, Circular, shape)

	_, err = ParseShape("hex")
	assert.Error(t, err)

	_, err = ParseShape("")
	assert.Error(t, err)
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "square", Square.String())
	assert.Equal(t, "circular", Circular.String())
	assert.Equal(t, "unknown", Shape(0).String())
}

func TestGridResult_ResolvedAndRanked(t *testing.T) {
	ranked := GridResult{Rank: 4}
	assert.True(t, ranked.Resolved())
	assert.True(t, ranked.Ranked())

	unranked := GridResult{Rank: 0}
	assert.True(t, unranked.Resolved())
	assert.False(t, unranked.Ranked(), "unranked is a completed query, not an error")

	errored := GridResult{Error: ErrTimedOut}
	assert.False(t, errored.Resolved())
	assert.False(t, errored.Ranked())
}

func TestCheckRequest_Validate(t *testing.T) {
	valid := CheckRequest{
		Keyword:      "pizza",
		BusinessName: "Joe's Pizza",
		CenterLat:    40.7,
		CenterLng:    -74.0,
		RadiusKM:     5,
		GridSize:     7,
		Shape:        Square,
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*CheckRequest)
	}{
		{"missing keyword", func(r *CheckRequest) { r.Keyword = "" }},
		{"missing business", func(r *CheckRequest) { r.BusinessName = "" }},
		{"zero grid size", func(r *CheckRequest) { r.GridSize = 0 }},
		{"negative radius", func(r *CheckRequest) { r.RadiusKM = -1 }},
		{"invalid shape", func(r *CheckRequest) { r.Shape = Shape(9) }},
		{"lat out of range", func(r *CheckRequest) { r.CenterLat = 90.1 }},
		{"lng out of range", func(r *CheckRequest) { r.CenterLng = -180.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}
