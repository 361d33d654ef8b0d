// Package engine orchestrates the scoring pipeline: aggregate activity,
// score both axes, resolve ranks, detect transitions, and distribute rewards.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/crescendoapp/crescendo/internal/aggregate"
	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/rankup"
	"github.com/crescendoapp/crescendo/internal/reward"
	"github.com/crescendoapp/crescendo/internal/score"
	"github.com/crescendoapp/crescendo/internal/service"
)

// Engine runs the full evaluation pipeline for one subject at a time.
// Evaluations for distinct subjects are independent; the only shared state
// is the durable distribution record table and the per-subject last-known
// snapshot cache used for data-source error recovery.
type Engine struct {
	aggregator    *aggregate.Aggregator
	thresholds    service.ThresholdStore
	detector      *rankup.Detector
	distributor   *reward.Distributor
	onRankUp      func(model.RankUpEvent)
	lastSnapshots map[string]model.Snapshot
	mu            sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithRankUpHook installs a callback invoked once per detected rank-up,
// after reward distribution for the evaluation completes.
func WithRankUpHook(hook func(model.RankUpEvent)) Option {
	return func(e *Engine) { e.onRankUp = hook }
}

// New creates an evaluation engine.
func New(source service.ActivitySource, thresholds service.ThresholdStore, states service.StateStore, distributor *reward.Distributor, opts ...Option) *Engine {
	e := &Engine{
		aggregator:    aggregate.New(source),
		thresholds:    thresholds,
		detector:      rankup.NewDetector(states),
		distributor:   distributor,
		lastSnapshots: make(map[string]model.Snapshot),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one full pipeline pass for a subject and returns the
// refreshed snapshot. Data-source failures, activity listing and threshold
// lookup alike, return the last-known snapshot with its Error field
// populated alongside the error, so callers can keep their loop alive.
// Invalid threshold configuration is fatal for the tenant's evaluations and
// returns no snapshot.
func (e *Engine) Evaluate(ctx context.Context, tenantID, userID string) (*model.Snapshot, error) {
	tables, economicCap, err := e.loadConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, common.ErrInvalidThresholds) {
			return nil, err
		}
		return e.degraded(tenantID, userID, err)
	}

	counters, err := e.aggregator.Counters(ctx, tenantID, userID, nil)
	if err != nil {
		return e.degraded(tenantID, userID, err)
	}

	economic := score.Economic(counters, tables[model.AxisEconomic])
	resonance := score.Resonance(counters, tables[model.AxisResonance])
	composite := score.Composite(economic.Value, resonance.Value, economicCap, tables[model.AxisComposite])

	snapshot := model.Snapshot{
		Economic:  economic,
		Resonance: resonance,
		Composite: composite,
	}

	obs, err := e.detector.Observe(ctx, tenantID, userID, composite.Level)
	if err != nil {
		snapshot.Error = err.Error()
		e.storeSnapshot(tenantID, userID, snapshot)
		return &snapshot, err
	}

	if obs.Fired {
		snapshot.RankUps = e.distributeCrossedLevels(ctx, tenantID, userID, obs, composite, tables[model.AxisComposite])

		if e.onRankUp != nil {
			e.onRankUp(model.RankUpEvent{
				UserID:        userID,
				TenantID:      tenantID,
				PreviousLevel: obs.PreviousLevel,
				NewLevel:      obs.NewLevel,
				RankName:      composite.RankName,
				ColorToken:    composite.ColorToken,
			})
		}
	}

	e.storeSnapshot(tenantID, userID, snapshot)
	return &snapshot, nil
}

// distributeCrossedLevels invokes the distributor once per crossed threshold
// level. The detector emits a single observation for the final level; every
// intermediate threshold still gets its own idempotent distribution record.
func (e *Engine) distributeCrossedLevels(ctx context.Context, tenantID, userID string, obs rankup.Observation, composite model.CompositeScore, tiers model.TierTable) []model.RankUpNotification {
	var notifications []model.RankUpNotification

	for level := obs.PreviousLevel + 1; level <= obs.NewLevel; level++ {
		threshold := tierLowerBound(tiers, level)

		record, err := e.distributor.Distribute(ctx, userID, tenantID, level, composite.Value, threshold)
		if err != nil {
			common.LogError(err, "reward distribution failed", common.Fields{
				"tenant":     tenantID,
				"user":       userID,
				"rank_level": level,
			})
			continue
		}

		notifications = append(notifications, model.RankUpNotification{
			Level:       record.RankLevel,
			BadgeRef:    record.BadgeRef,
			ArtifactRef: record.ArtifactRef,
		})
	}

	return notifications
}

// loadConfig resolves the tenant's tier tables and economic cap, falling
// back to the built-in defaults where unset. Non-monotonic tables fail
// loudly rather than silently defaulting.
func (e *Engine) loadConfig(ctx context.Context, tenantID string) (map[model.Axis]model.TierTable, float64, error) {
	tables := make(map[model.Axis]model.TierTable, 3)

	for _, axis := range []model.Axis{model.AxisEconomic, model.AxisResonance, model.AxisComposite} {
		table, err := e.thresholds.GetTierTable(ctx, tenantID, axis)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load %s thresholds for tenant %s: %w", axis, tenantID, err)
		}
		if table == nil {
			table = score.DefaultTierTable(axis)
		}
		if err := table.Validate(); err != nil {
			return nil, 0, fmt.Errorf("%w: %s axis for tenant %s: %v", common.ErrInvalidThresholds, axis, tenantID, err)
		}
		tables[axis] = table
	}

	economicCap, err := e.thresholds.GetEconomicCap(ctx, tenantID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load economic cap for tenant %s: %w", tenantID, err)
	}

	return tables, economicCap, nil
}

// degraded serves the last-known snapshot for a data-source failure.
func (e *Engine) degraded(tenantID, userID string, err error) (*model.Snapshot, error) {
	snapshot := e.lastSnapshot(tenantID, userID)
	snapshot.Error = err.Error()
	return &snapshot, fmt.Errorf("%w: %v", common.ErrActivitySource, err)
}

func (e *Engine) lastSnapshot(tenantID, userID string) model.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSnapshots[tenantID+"\x00"+userID]
}

func (e *Engine) storeSnapshot(tenantID, userID string, snapshot model.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSnapshots[tenantID+"\x00"+userID] = snapshot
}

func tierLowerBound(tiers model.TierTable, level int) float64 {
	for _, tier := range tiers {
		if tier.Level == level {
			return tier.LowerBound
		}
	}
	return 0
}
