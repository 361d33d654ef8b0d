// Package service defines the interfaces for all engine collaborators.
package service

import (
	"context"
	"time"

	"github.com/crescendoapp/crescendo/internal/model"
)

// ActivitySource lists settled transfer records for a subject. Implementations
// must return settled records only; ordering is arbitrary, the engine sorts
// internally where order matters.
type ActivitySource interface {
	ListActivity(ctx context.Context, tenantID, userID string, since *time.Time) ([]model.ActivityRecord, error)
}

// ThresholdStore provides per-tenant rank configuration.
type ThresholdStore interface {
	// GetTierTable returns the tenant's tier table for an axis, or nil when
	// the tenant has not configured one.
	GetTierTable(ctx context.Context, tenantID string, axis model.Axis) (model.TierTable, error)
	// GetEconomicCap returns the tenant's economic normalization cap, or 0
	// when unset.
	GetEconomicCap(ctx context.Context, tenantID string) (float64, error)
}

// BadgeMinter issues a rank badge credential and returns its reference id.
// Duplicate-mint attempts fail with a distinguishable error, but the engine
// owns idempotency via the distribution record, not this service.
type BadgeMinter interface {
	MintBadge(ctx context.Context, userID string, rankLevel int) (string, error)
}

// ArtifactDistributor delivers a bonus artifact and returns its reference id.
type ArtifactDistributor interface {
	DistributeArtifact(ctx context.Context, userID, artifactID string) (string, error)
}

// DistributionStore persists reward issuance outcomes. InsertRecord must
// enforce uniqueness on (user, tenant, rank level) and report a collision as
// common.ErrDuplicateEntry.
type DistributionStore interface {
	FindRecord(ctx context.Context, userID, tenantID string, rankLevel int) (*model.RewardDistributionRecord, error)
	InsertRecord(ctx context.Context, record *model.RewardDistributionRecord) error
	FinalizeRecord(ctx context.Context, record *model.RewardDistributionRecord) error
	ListRecords(ctx context.Context, userID, tenantID string) ([]model.RewardDistributionRecord, error)
}

// StateStore tracks the previously observed rank level per (tenant, user)
// pair so transition detection survives process restarts.
type StateStore interface {
	// GetPreviousLevel returns the last observed level, 0 when the subject
	// has never been observed.
	GetPreviousLevel(ctx context.Context, tenantID, userID string) (int, error)
	SetPreviousLevel(ctx context.Context, tenantID, userID string, level int) error
}

// Change identifies the subject whose activity records changed upstream.
type Change struct {
	TenantID string
	UserID   string
}

// ChangeSource delivers at-least-once "something changed" signals. Duplicate
// signals are harmless because the evaluation pipeline is pure given its
// inputs.
type ChangeSource interface {
	Changes() <-chan Change
	Close() error
}

// Evaluator runs the full scoring pipeline for one subject.
type Evaluator interface {
	Evaluate(ctx context.Context, tenantID, userID string) (*model.Snapshot, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
