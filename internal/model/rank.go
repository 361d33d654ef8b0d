package model

import (
	"fmt"
	"sort"
)

// Axis identifies one scoring dimension.
type Axis string

const (
	// AxisEconomic is the money-weighted dimension.
	AxisEconomic Axis = "economic"
	// AxisResonance is the engagement-weighted dimension.
	AxisResonance Axis = "resonance"
	// AxisComposite blends both dimensions 50/50.
	AxisComposite Axis = "composite"
)

// RankTier is one row of a tenant's tiered rank table.
type RankTier struct {
	Name       string
	ColorToken string
	LowerBound float64
	UpperBound float64 // ignored on the final tier, which is unbounded above
	Level      int
}

// TierTable is an ascending list of rank tiers for one axis.
type TierTable []RankTier

// Validate checks that the table is totally ordered and strictly increasing.
// A violation is a tenant configuration error, not a runtime fault.
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("tier table is empty")
	}
	for i, tier := range t {
		if tier.Level != i+1 {
			return fmt.Errorf("tier %q has level %d, expected %d", tier.Name, tier.Level, i+1)
		}
		if i > 0 && tier.LowerBound <= t[i-1].LowerBound {
			return fmt.Errorf("tier %q lower bound %.2f does not exceed previous bound %.2f",
				tier.Name, tier.LowerBound, t[i-1].LowerBound)
		}
		if i < len(t)-1 && tier.UpperBound <= tier.LowerBound {
			return fmt.Errorf("tier %q upper bound %.2f does not exceed lower bound %.2f",
				tier.Name, tier.UpperBound, tier.LowerBound)
		}
	}
	return nil
}

// AxisScore is the resolved score for one axis at one evaluation.
type AxisScore struct {
	RankName   string
	ColorToken string
	Value      float64
	Progress   float64 // 0-100 toward the next rank
	Level      int     // ordinal rank level, 1..N
}

// CompositeScore is the 50/50 blend of both axes with its own rank resolution.
type CompositeScore struct {
	RankName   string
	ColorToken string
	Value      float64
	Progress   float64
	Level      int
}

// Resolution is the outcome of resolving a score against sparse ordered
// thresholds. NextLevel and NextThreshold are nil in the terminal state.
type Resolution struct {
	NextLevel       *int
	NextThreshold   *float64
	Remaining       float64
	ProgressPercent float64
	Level           int
}

// Threshold is one (level, minimum score) entry of a sparse threshold set.
type Threshold struct {
	Level int
	Score float64
}

// SortThresholds orders thresholds by score ascending, the order the
// resolver scans them in.
func SortThresholds(thresholds []Threshold) []Threshold {
	sorted := make([]Threshold, len(thresholds))
	copy(sorted, thresholds)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Score < sorted[j].Score
	})
	return sorted
}
