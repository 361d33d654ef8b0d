package score

import "github.com/crescendoapp/crescendo/internal/model"

// Resolve maps a score against sparse ordered thresholds. Thresholds are
// sorted by score ascending before scanning, so callers may pass them in any
// order and with gaps in the level sequence. When the score meets or exceeds
// every defined threshold, NextLevel is nil, Remaining is 0, and
// ProgressPercent is 100: the terminal state, not an error.
func Resolve(value float64, thresholds []model.Threshold) model.Resolution {
	if len(thresholds) == 0 {
		return model.Resolution{ProgressPercent: 100}
	}

	sorted := model.SortThresholds(thresholds)

	current := model.Threshold{Level: sorted[0].Level, Score: sorted[0].Score}
	var next *model.Threshold
	for i := range sorted {
		if value >= sorted[i].Score {
			current = sorted[i]
			continue
		}
		next = &sorted[i]
		break
	}

	if next == nil {
		return model.Resolution{
			Level:           current.Level,
			Remaining:       0,
			ProgressPercent: 100,
		}
	}

	span := next.Score - current.Score
	progress := 0.0
	if span > 0 && value >= current.Score {
		progress = (value - current.Score) / span * 100
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	nextLevel := next.Level
	nextScore := next.Score
	return model.Resolution{
		Level:           current.Level,
		NextLevel:       &nextLevel,
		NextThreshold:   &nextScore,
		Remaining:       nextScore - value,
		ProgressPercent: progress,
	}
}
