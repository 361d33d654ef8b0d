// Package aggregate reduces a subject's activity records into the raw
// counters that feed the axis scorers.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/service"
)

// Aggregator reads activity records and reduces them into counters. It is a
// pure read; calling it repeatedly has no side effects.
type Aggregator struct {
	source service.ActivitySource
	retry  service.RetryOptions
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRetryOptions overrides the retry behavior for activity listing.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(a *Aggregator) { a.retry = opts }
}

// New creates an aggregator backed by the given activity source.
func New(source service.ActivitySource, opts ...Option) *Aggregator {
	a := &Aggregator{source: source}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Counters lists a subject's settled records and reduces them. A nil since
// means the full, unbounded history. Zero records yield all-zero counters,
// never an error. Transient listing failures (timeouts, unreachable source)
// are retried with backoff before the error propagates.
func (a *Aggregator) Counters(ctx context.Context, tenantID, userID string, since *time.Time) (*model.AggregatedCounters, error) {
	var records []model.ActivityRecord

	err := common.WithRetry(ctx, func() error {
		listed, listErr := a.source.ListActivity(ctx, tenantID, userID, since)
		if listErr != nil {
			return &common.RetryableError{Err: listErr, Retryable: common.IsRetryable(listErr)}
		}
		records = listed
		return nil
	}, a.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}

	return Reduce(records), nil
}

// Reduce folds activity records into aggregated counters. Each record is
// classified into exactly one of {economic, resonance} via a case-insensitive
// tag lookup; records with an unrecognized tag are excluded from both counts
// but still contribute to the distinct-date set.
func Reduce(records []model.ActivityRecord) *model.AggregatedCounters {
	counters := &model.AggregatedCounters{
		ActiveDates: make(map[string]struct{}),
	}

	for i := range records {
		rec := &records[i]
		counters.ActiveDates[rec.ActivityDate()] = struct{}{}

		tag, ok := model.ParseAxisTag(rec.AxisTag)
		if !ok {
			continue
		}
		switch tag {
		case model.AxisTagEconomic:
			counters.EconomicTotal += rec.Amount
			counters.EconomicCount++
		case model.AxisTagResonance:
			counters.ResonanceCount++
		}
	}

	counters.MessageQuality = messageQuality(records)

	return counters
}

// messageQuality derives the 0-100 annotation signal:
// min(100, round(messageRatio*70 + lengthBonus)) where messageRatio is the
// fraction of records carrying non-empty annotation text and lengthBonus is
// min(30, averageAnnotationLength/2) over annotated records only.
func messageQuality(records []model.ActivityRecord) int {
	if len(records) == 0 {
		return 0
	}

	annotated := 0
	totalLen := 0
	for i := range records {
		if records[i].Annotation != "" {
			annotated++
			totalLen += len([]rune(records[i].Annotation))
		}
	}

	ratio := float64(annotated) / float64(len(records))

	var lengthBonus float64
	if annotated > 0 {
		avgLen := float64(totalLen) / float64(annotated)
		lengthBonus = math.Min(30, avgLen/2)
	}

	quality := math.Round(ratio*70 + lengthBonus)
	if quality > 100 {
		quality = 100
	}
	return int(quality)
}
