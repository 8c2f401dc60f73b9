// Package metrics reduces per-point grid results into the summary figures the
// reporting layer renders: AFPR, GRM, TSS, a rank distribution, and a
// composite visibility score.
package metrics

import (
	"math"
	"sort"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

// firstPageCutoff is the highest rank still considered page one.
const firstPageCutoff = 10

// topSpotCutoff is the highest rank counted as a top spot.
const topSpotCutoff = 3

// topListSize is how many best/worst points are reported.
const topListSize = 3

// Aggregate computes summary metrics from a full GridResult set. Pure:
// calling it twice on the same input yields identical output. Errored points
// are excluded from every metric here; they surface only through the
// orchestrator's completion rate.
func Aggregate(results []model.GridResult, policy VisibilityPolicy) model.AggregateMetrics {
	var resolved, ranked []model.GridResult
	for _, r := range results {
		if !r.Resolved() {
			continue
		}
		resolved = append(resolved, r)
		if r.Ranked() {
			ranked = append(ranked, r)
		}
	}

	m := model.AggregateMetrics{
		Distribution: distribution(resolved),
	}

	var firstPageSum float64
	var firstPageN int
	var rankSum float64
	var topSpots int
	for _, r := range ranked {
		rankSum += float64(r.Rank)
		if r.Rank <= firstPageCutoff {
			firstPageSum += float64(r.Rank)
			firstPageN++
		}
		if r.Rank <= topSpotCutoff {
			topSpots++
		}
	}

	if firstPageN > 0 {
		m.AFPR = firstPageSum / float64(firstPageN)
		m.AFPRDefined = true
	}
	if len(ranked) > 0 {
		m.GRM = rankSum / float64(len(ranked))
		m.TSS = 100 * float64(topSpots) / float64(len(ranked))
	}

	// A grid with no ranked points scores zero; the GRM zero value would
	// otherwise read as a perfect mean rank.
	if len(ranked) > 0 {
		m.VisibilityScore = policy.Score(m.AFPR, m.AFPRDefined, m.GRM, m.TSS)
	}
	m.TopPoints = bestPoints(resolved)
	m.WeakPoints = weakPoints(resolved)

	return m
}

// distribution buckets resolved points into integer percentages, rounded
// half-up per bucket. Unranked points land in ">20". Buckets may not sum to
// exactly 100.
func distribution(resolved []model.GridResult) map[string]int {
	dist := map[string]int{
		model.BucketTop3:   0,
		model.BucketPage1:  0,
		model.BucketPage2:  0,
		model.BucketBeyond: 0,
	}
	if len(resolved) == 0 {
		return dist
	}

	counts := make(map[string]int, 4)
	for _, r := range resolved {
		counts[bucketFor(r)]++
	}
	for b, c := range counts {
		dist[b] = roundHalfUp(100 * float64(c) / float64(len(resolved)))
	}
	return dist
}

func bucketFor(r model.GridResult) string {
	switch {
	case !r.Ranked():
		return model.BucketBeyond
	case r.Rank <= topSpotCutoff:
		return model.BucketTop3
	case r.Rank <= firstPageCutoff:
		return model.BucketPage1
	case r.Rank <= 20:
		return model.BucketPage2
	default:
		return model.BucketBeyond
	}
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// effectiveRank orders results for best/worst selection. Unranked sorts worse
// than any numeric rank.
func effectiveRank(r model.GridResult) int {
	if !r.Ranked() {
		return math.MaxInt
	}
	return r.Rank
}

func bestPoints(resolved []model.GridResult) []model.GridResult {
	out := make([]model.GridResult, len(resolved))
	copy(out, resolved)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := effectiveRank(out[i]), effectiveRank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i].Point.ID < out[j].Point.ID
	})
	if len(out) > topListSize {
		out = out[:topListSize]
	}
	return out
}

func weakPoints(resolved []model.GridResult) []model.GridResult {
	out := make([]model.GridResult, len(resolved))
	copy(out, resolved)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := effectiveRank(out[i]), effectiveRank(out[j])
		if ri != rj {
			return ri > rj
		}
		return out[i].Point.ID < out[j].Point.ID
	})
	if len(out) > topListSize {
		out = out[:topListSize]
	}
	return out
}
