package score

import (
	"math"
	"time"

	"github.com/crescendoapp/crescendo/internal/model"
)

// Economic scores the money-weighted axis: the value is the sum of
// economic-bearing amounts with no further transform.
func Economic(counters *model.AggregatedCounters, tiers model.TierTable) model.AxisScore {
	value := counters.EconomicTotal
	tier, progress := lookupTier(value, tiers)
	return model.AxisScore{
		Value:      value,
		RankName:   tier.Name,
		ColorToken: tier.ColorToken,
		Progress:   progress,
		Level:      tier.Level,
	}
}

// Resonance scores the engagement-weighted axis. The formula is deliberately
// free of monetary terms:
//
//	engagement = resonanceCount*2 + streakDays*10 + messageQuality, cap 1000
func Resonance(counters *model.AggregatedCounters, tiers model.TierTable) model.AxisScore {
	streak := LongestStreak(counters.SortedDates())
	value := float64(counters.ResonanceCount*2 + streak*10 + counters.MessageQuality)
	if value > EngagementCap {
		value = EngagementCap
	}
	tier, progress := lookupTier(value, tiers)
	return model.AxisScore{
		Value:      value,
		RankName:   tier.Name,
		ColorToken: tier.ColorToken,
		Progress:   progress,
		Level:      tier.Level,
	}
}

// Composite blends both axes 50/50 after normalizing each to a 0-1000 scale.
// A zero economicCap falls back to DefaultEconomicCap.
func Composite(economicValue, engagementValue, economicCap float64, tiers model.TierTable) model.CompositeScore {
	if economicCap <= 0 {
		economicCap = DefaultEconomicCap
	}

	normalizedEconomic := math.Min(1000, economicValue/economicCap*1000)
	normalizedResonance := math.Min(1000, engagementValue)
	value := math.Round(normalizedEconomic*0.5 + normalizedResonance*0.5)

	tier, progress := lookupTier(value, tiers)
	return model.CompositeScore{
		Value:      value,
		RankName:   tier.Name,
		ColorToken: tier.ColorToken,
		Progress:   progress,
		Level:      tier.Level,
	}
}

// LongestStreak returns the length of the longest run of consecutive
// calendar dates. Dates must be ascending "2006-01-02" strings. A gap of
// exactly one day continues the run; any other gap resets the run to length
// 1. An empty set yields 0.
func LongestStreak(dates []string) int {
	if len(dates) == 0 {
		return 0
	}

	longest := 1
	current := 1
	prev, err := time.Parse("2006-01-02", dates[0])
	if err != nil {
		return 0
	}

	for _, raw := range dates[1:] {
		day, parseErr := time.Parse("2006-01-02", raw)
		if parseErr != nil {
			continue
		}
		if day.Sub(prev) == 24*time.Hour {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
		prev = day
	}

	return longest
}
