package score

import (
	"testing"

	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestLongestStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{
			name:  "empty set",
			dates: nil,
			want:  0,
		},
		{
			name:  "single day",
			dates: []string{"2024-01-01"},
			want:  1,
		},
		{
			name:  "run of three then a gap",
			dates: []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-10"},
			want:  3,
		},
		{
			name:  "gap resets but keeps earlier maximum",
			dates: []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-05", "2024-01-06"},
			want:  3,
		},
		{
			name:  "two day gap does not continue a run",
			dates: []string{"2024-01-01", "2024-01-03", "2024-01-05"},
			want:  1,
		},
		{
			name:  "longest run at the end",
			dates: []string{"2024-02-01", "2024-02-10", "2024-02-11", "2024-02-12", "2024-02-13"},
			want:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LongestStreak(tt.dates))
		})
	}
}

func TestEconomic(t *testing.T) {
	tiers := DefaultTierTable(model.AxisEconomic)

	tests := []struct {
		name         string
		total        float64
		wantLevel    int
		wantName     string
		wantProgress float64
	}{
		{name: "zero stays in first tier", total: 0, wantLevel: 1, wantName: "Bronze", wantProgress: 0},
		{name: "mid first tier", total: 500, wantLevel: 1, wantName: "Bronze", wantProgress: 50},
		{name: "boundary promotes to second tier", total: 1000, wantLevel: 2, wantName: "Silver", wantProgress: 0},
		{name: "mid gold", total: 5000, wantLevel: 3, wantName: "Gold", wantProgress: 50},
		{name: "above final tier pins progress", total: 99999, wantLevel: 5, wantName: "Diamond", wantProgress: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Economic(&model.AggregatedCounters{EconomicTotal: tt.total}, tiers)
			assert.Equal(t, tt.total, got.Value)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantName, got.RankName)
			assert.InDelta(t, tt.wantProgress, got.Progress, 0.001)
		})
	}
}

func TestResonance(t *testing.T) {
	tiers := DefaultTierTable(model.AxisResonance)

	t.Run("formula combines count, streak and quality", func(t *testing.T) {
		counters := &model.AggregatedCounters{
			ResonanceCount: 10,
			MessageQuality: 45,
			ActiveDates: map[string]struct{}{
				"2024-01-01": {},
				"2024-01-02": {},
				"2024-01-03": {},
			},
		}

		got := Resonance(counters, tiers)
		// 10*2 + 3*10 + 45 = 95
		assert.Equal(t, 95.0, got.Value)
		assert.Equal(t, 1, got.Level)
	})

	t.Run("engagement is capped at 1000", func(t *testing.T) {
		counters := &model.AggregatedCounters{
			ResonanceCount: 600,
			MessageQuality: 100,
		}

		got := Resonance(counters, tiers)
		assert.Equal(t, 1000.0, got.Value)
		assert.Equal(t, 5, got.Level)
		assert.Equal(t, 100.0, got.Progress)
	})

	t.Run("no monetary term leaks into resonance", func(t *testing.T) {
		broke := &model.AggregatedCounters{ResonanceCount: 50}
		rich := &model.AggregatedCounters{ResonanceCount: 50, EconomicTotal: 1_000_000, EconomicCount: 400}

		assert.Equal(t, Resonance(broke, tiers).Value, Resonance(rich, tiers).Value)
	})
}

func TestComposite(t *testing.T) {
	tiers := DefaultTierTable(model.AxisComposite)

	t.Run("worked example", func(t *testing.T) {
		// economic 3500 of cap 7000 -> 500; engagement 600 -> composite 550
		got := Composite(3500, 600, 7000, tiers)
		assert.Equal(t, 550.0, got.Value)
		assert.Equal(t, 3, got.Level)
	})

	t.Run("zero cap falls back to default", func(t *testing.T) {
		got := Composite(3500, 600, 0, tiers)
		assert.Equal(t, 550.0, got.Value)
	})

	t.Run("normalized economic is capped", func(t *testing.T) {
		got := Composite(70000, 0, 7000, tiers)
		assert.Equal(t, 500.0, got.Value)
	})
}

func TestLookupMonotonicity(t *testing.T) {
	tiers := DefaultTierTable(model.AxisEconomic)

	prevLevel := 0
	for value := 0.0; value <= 20000; value += 250 {
		got := Economic(&model.AggregatedCounters{EconomicTotal: value}, tiers)
		assert.GreaterOrEqual(t, got.Level, prevLevel, "level regressed at value %.0f", value)
		prevLevel = got.Level
	}
}

func TestDefaultTierTablesValidate(t *testing.T) {
	for _, axis := range []model.Axis{model.AxisEconomic, model.AxisResonance, model.AxisComposite} {
		table := DefaultTierTable(axis)
		assert.Len(t, table, 5, "axis %s", axis)
		assert.NoError(t, table.Validate(), "axis %s", axis)
	}
}
