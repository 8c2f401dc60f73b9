package metrics

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// VisibilityPolicy holds the weights of the composite visibility score.
// The blend is tuning, not truth: it is exposed as configuration so product
// can adjust it without code changes.
type VisibilityPolicy struct {
	// AFPRWeight scores first-page strength: AFPR of 1 is full credit,
	// AFPR of 10 (or undefined) is none.
	AFPRWeight float64 `yaml:"afpr_weight" mapstructure:"afpr_weight"`
	// GRMWeight scores overall grid strength: GRM of 1 is full credit,
	// GRM past 20 is none.
	GRMWeight float64 `yaml:"grm_weight" mapstructure:"grm_weight"`
	// TSSWeight passes the top-spot share through directly.
	TSSWeight float64 `yaml:"tss_weight" mapstructure:"tss_weight"`
}

// DefaultVisibilityPolicy returns the default weighting. Weights sum to 100.
func DefaultVisibilityPolicy() VisibilityPolicy {
	return VisibilityPolicy{
		AFPRWeight: 40,
		GRMWeight:  35,
		TSSWeight:  25,
	}
}

// Sum returns the total of all weights.
func (p VisibilityPolicy) Sum() float64 {
	return p.AFPRWeight + p.GRMWeight + p.TSSWeight
}

// Validate checks that the policy is internally consistent.
func (p VisibilityPolicy) Validate() error {
	var errs []string
	for name, w := range map[string]float64{
		"afpr_weight": p.AFPRWeight,
		"grm_weight":  p.GRMWeight,
		"tss_weight":  p.TSSWeight,
	} {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if p.Sum() <= 0 {
		errs = append(errs, "weights must sum to a positive number")
	}
	if len(errs) > 0 {
		return eris.Errorf("metrics: invalid visibility policy: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Score computes the 0-100 visibility composite. AFPR and GRM contribute
// inversely (lower rank, higher score); TSS contributes directly. An
// undefined AFPR contributes zero rather than being skipped, so a grid with
// no page-one presence is penalized, not excused.
func (p VisibilityPolicy) Score(afpr float64, afprDefined bool, grm, tss float64) float64 {
	var afprScore float64
	if afprDefined {
		afprScore = inverseScale(afpr, 1, 10)
	}
	grmScore := inverseScale(grm, 1, 21)

	raw := p.AFPRWeight*afprScore + p.GRMWeight*grmScore + p.TSSWeight*(tss/100)
	return 100 * raw / p.Sum()
}

// inverseScale maps v in [lo, hi] to [1, 0] linearly, clamping outside the
// range.
func inverseScale(v, lo, hi float64) float64 {
	if v <= lo {
		return 1
	}
	if v >= hi {
		return 0
	}
	return (hi - v) / (hi - lo)
}
