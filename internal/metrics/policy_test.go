package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultVisibilityPolicy(t *testing.T) {
	p := DefaultVisibilityPolicy()
	assert.NoError(t, p.Validate())
	assert.InDelta(t, 100.0, p.Sum(), 1e-9)
}

func TestVisibilityPolicy_Validate(t *testing.T) {
	assert.Error(t, VisibilityPolicy{}.Validate(), "zero weights")
	assert.Error(t, VisibilityPolicy{AFPRWeight: -1, GRMWeight: 50, TSSWeight: 51}.Validate())
	assert.NoError(t, VisibilityPolicy{AFPRWeight: 1, GRMWeight: 1, TSSWeight: 1}.Validate())
	// Weights need not sum to 100; Score normalizes.
	assert.NoError(t, VisibilityPolicy{AFPRWeight: 2, GRMWeight: 3, TSSWeight: 5}.Validate())
}

func TestVisibilityPolicy_ScorePerfectGrid(t *testing.T) {
	p := DefaultVisibilityPolicy()
	// Every point rank 1: AFPR 1, GRM 1, TSS 100.
	assert.InDelta(t, 100.0, p.Score(1, true, 1, 100), 1e-9)
}

func TestVisibilityPolicy_ScoreWorstGrid(t *testing.T) {
	p := DefaultVisibilityPolicy()
	assert.InDelta(t, 0.0, p.Score(0, false, 21, 0), 1e-9)
}

func TestVisibilityPolicy_UndefinedAFPRContributesZero(t *testing.T) {
	p := DefaultVisibilityPolicy()
	withAFPR := p.Score(10, true, 15, 0)
	withoutAFPR := p.Score(0, false, 15, 0)
	// AFPR of 10 scales to zero, same as undefined.
	assert.InDelta(t, withAFPR, withoutAFPR, 1e-9)
}

func TestVisibilityPolicy_ScoreNormalizesWeights(t *testing.T) {
	a := VisibilityPolicy{AFPRWeight: 40, GRMWeight: 35, TSSWeight: 25}
	b := VisibilityPolicy{AFPRWeight: 8, GRMWeight: 7, TSSWeight: 5}
	assert.InDelta(t, a.Score(3, true, 6, 40), b.Score(3, true, 6, 40), 1e-9)
}

func TestInverseScale(t *testing.T) {
	assert.InDelta(t, 1.0, inverseScale(1, 1, 10), 1e-9)
	assert.InDelta(t, 0.0, inverseScale(10, 1, 10), 1e-9)
	assert.InDelta(t, 0.5, inverseScale(5.5, 1, 10), 1e-9)
	// Clamped outside the range.
	assert.InDelta(t, 1.0, inverseScale(0, 1, 10), 1e-9)
	assert.InDelta(t, 0.0, inverseScale(50, 1, 10), 1e-9)
}
