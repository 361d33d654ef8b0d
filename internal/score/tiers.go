// Package score converts aggregated counters into axis scores, composite
// scores, and rank resolutions.
package score

import "github.com/crescendoapp/crescendo/internal/model"

// DefaultEconomicCap is the economic normalization ceiling used when a
// tenant has not configured one.
const DefaultEconomicCap = 7000.0

// EngagementCap bounds the resonance engagement score.
const EngagementCap = 1000.0

// Default five-tier tables, used when a tenant has not configured thresholds.
var (
	defaultEconomicTiers = model.TierTable{
		{Level: 1, Name: "Bronze", ColorToken: "#CD7F32", LowerBound: 0, UpperBound: 1000},
		{Level: 2, Name: "Silver", ColorToken: "#C0C0C0", LowerBound: 1000, UpperBound: 3000},
		{Level: 3, Name: "Gold", ColorToken: "#FFD700", LowerBound: 3000, UpperBound: 7000},
		{Level: 4, Name: "Platinum", ColorToken: "#E5E4E2", LowerBound: 7000, UpperBound: 15000},
		{Level: 5, Name: "Diamond", ColorToken: "#B9F2FF", LowerBound: 15000, UpperBound: 0},
	}

	defaultResonanceTiers = model.TierTable{
		{Level: 1, Name: "Echo", ColorToken: "#95E1D3", LowerBound: 0, UpperBound: 100},
		{Level: 2, Name: "Chord", ColorToken: "#4ECDC4", LowerBound: 100, UpperBound: 300},
		{Level: 3, Name: "Harmony", ColorToken: "#45B7D1", LowerBound: 300, UpperBound: 600},
		{Level: 4, Name: "Crescendo", ColorToken: "#9B59B6", LowerBound: 600, UpperBound: 900},
		{Level: 5, Name: "Symphony", ColorToken: "#F1C40F", LowerBound: 900, UpperBound: 0},
	}

	defaultCompositeTiers = model.TierTable{
		{Level: 1, Name: "Spark", ColorToken: "#BDC3C7", LowerBound: 0, UpperBound: 150},
		{Level: 2, Name: "Flame", ColorToken: "#E67E22", LowerBound: 150, UpperBound: 350},
		{Level: 3, Name: "Blaze", ColorToken: "#E74C3C", LowerBound: 350, UpperBound: 600},
		{Level: 4, Name: "Inferno", ColorToken: "#C0392B", LowerBound: 600, UpperBound: 850},
		{Level: 5, Name: "Supernova", ColorToken: "#8E44AD", LowerBound: 850, UpperBound: 0},
	}
)

// DefaultTierTable returns the built-in five-tier table for an axis.
func DefaultTierTable(axis model.Axis) model.TierTable {
	switch axis {
	case model.AxisEconomic:
		return defaultEconomicTiers
	case model.AxisResonance:
		return defaultResonanceTiers
	case model.AxisComposite:
		return defaultCompositeTiers
	default:
		return nil
	}
}

// lookupTier scans ascending tiers and returns the tier holding the score
// plus the progress fraction toward the next tier. The first tier whose
// upper bound strictly exceeds the score wins; when the score exceeds every
// upper bound the final tier applies with progress fixed at 100.
func lookupTier(value float64, tiers model.TierTable) (model.RankTier, float64) {
	for i, tier := range tiers {
		if i == len(tiers)-1 {
			break
		}
		if tier.UpperBound > value {
			span := tier.UpperBound - tier.LowerBound
			progress := (value - tier.LowerBound) / span * 100
			if progress < 0 {
				progress = 0
			}
			if progress > 100 {
				progress = 100
			}
			return tier, progress
		}
	}
	return tiers[len(tiers)-1], 100
}
