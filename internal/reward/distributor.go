// Package reward performs at-most-once issuance of rank badges and bonus
// artifacts when a rank boundary is crossed.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/service"
)

// BonusConfig maps rank levels to the optional bonus artifact distributed at
// that level. Levels without an entry mint a badge only.
type BonusConfig map[int]string

// Distributor issues rewards with at-most-once semantics. The durable
// distribution record keyed by (user, tenant, rank level) is the source of
// correctness; the record is claimed with status pending before any issuance
// call and finalized afterwards.
type Distributor struct {
	records     service.DistributionStore
	badges      service.BadgeMinter
	artifacts   service.ArtifactDistributor
	bonuses     BonusConfig
	callTimeout time.Duration
	retry       service.RetryOptions
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithBonuses configures the per-rank bonus artifacts.
func WithBonuses(bonuses BonusConfig) Option {
	return func(d *Distributor) { d.bonuses = bonuses }
}

// WithCallTimeout bounds each issuance service call attempt.
func WithCallTimeout(timeout time.Duration) Option {
	return func(d *Distributor) { d.callTimeout = timeout }
}

// WithRetryOptions overrides the retry behavior for issuance calls.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(d *Distributor) { d.retry = opts }
}

// NewDistributor creates a reward distributor.
func NewDistributor(records service.DistributionStore, badges service.BadgeMinter, artifacts service.ArtifactDistributor, opts ...Option) *Distributor {
	d := &Distributor{
		records:     records,
		badges:      badges,
		artifacts:   artifacts,
		bonuses:     BonusConfig{},
		callTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distribute issues the reward for one crossed rank level. Calling it again
// with the same (user, tenant, rank level) returns the existing record
// unchanged. Badge and artifact side effects are independent; partial
// success is a valid terminal outcome and is not retried automatically.
func (d *Distributor) Distribute(ctx context.Context, userID, tenantID string, rankLevel int, score, threshold float64) (*model.RewardDistributionRecord, error) {
	existing, err := d.records.FindRecord(ctx, userID, tenantID, rankLevel)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up distribution record: %w", err)
	}
	if existing != nil {
		slog.Debug("reward already distributed",
			"user", userID,
			"tenant", tenantID,
			"rank_level", rankLevel,
			"status", existing.Status)
		return existing, nil
	}

	// Claim the slot before acting. The unique index on the idempotency key
	// arbitrates concurrent claims: the loser sees ErrDuplicateEntry and
	// returns the winner's record.
	record := &model.RewardDistributionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		TenantID:  tenantID,
		RankLevel: rankLevel,
		Status:    model.StatusPending,
		Score:     score,
		Threshold: threshold,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.records.InsertRecord(ctx, record); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			winner, findErr := d.records.FindRecord(ctx, userID, tenantID, rankLevel)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load winning distribution record: %w", findErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to claim distribution record: %w", err)
	}

	var failures []string

	badgeRef, badgeErr := d.mintBadge(ctx, userID, rankLevel)
	switch {
	case badgeErr == nil:
		record.BadgeMinted = true
		record.BadgeRef = badgeRef
	case errors.Is(badgeErr, common.ErrDuplicateMint):
		// The service already holds this badge from an attempt whose record
		// write was lost. The reward exists; count the mint as done with an
		// unknown reference.
		slog.Warn("badge already minted upstream",
			"user", userID,
			"tenant", tenantID,
			"rank_level", rankLevel)
		record.BadgeMinted = true
	default:
		common.LogError(badgeErr, "badge mint failed", common.Fields{
			"user":       userID,
			"tenant":     tenantID,
			"rank_level": rankLevel,
		})
		failures = append(failures, fmt.Sprintf("badge: %v", badgeErr))
	}

	if artifactID, configured := d.bonuses[rankLevel]; configured {
		artifactRef, artifactErr := d.distributeArtifact(ctx, userID, artifactID)
		if artifactErr != nil {
			common.LogError(artifactErr, "bonus artifact delivery failed", common.Fields{
				"user":       userID,
				"tenant":     tenantID,
				"rank_level": rankLevel,
				"artifact":   artifactID,
			})
			failures = append(failures, fmt.Sprintf("artifact: %v", artifactErr))
		} else {
			record.ArtifactSent = true
			record.ArtifactRef = artifactRef
		}
	}

	if record.BadgeMinted || record.ArtifactSent {
		record.Status = model.StatusCompleted
	} else {
		record.Status = model.StatusFailed
	}
	record.FailureReason = strings.Join(failures, "; ")

	if err := d.records.FinalizeRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to finalize distribution record: %w", err)
	}

	slog.Info("reward distribution finalized",
		"user", userID,
		"tenant", tenantID,
		"rank_level", rankLevel,
		"status", record.Status,
		"badge_minted", record.BadgeMinted,
		"artifact_sent", record.ArtifactSent)

	return record, nil
}

// mintBadge calls the badge service with a per-attempt timeout. Timeouts are
// retryable failures, not evidence the badge was or was not minted; a
// duplicate-mint response ends the retries immediately.
func (d *Distributor) mintBadge(ctx context.Context, userID string, rankLevel int) (string, error) {
	var ref string

	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		defer cancel()

		minted, mintErr := d.badges.MintBadge(callCtx, userID, rankLevel)
		if mintErr != nil {
			return &common.RetryableError{Err: mintErr, Retryable: common.IsRetryable(mintErr)}
		}
		ref = minted
		return nil
	}, d.retry)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateMint) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", common.ErrBadgeMint, err)
	}

	return ref, nil
}

func (d *Distributor) distributeArtifact(ctx context.Context, userID, artifactID string) (string, error) {
	var ref string

	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		defer cancel()

		sent, sendErr := d.artifacts.DistributeArtifact(callCtx, userID, artifactID)
		if sendErr != nil {
			return &common.RetryableError{Err: sendErr, Retryable: common.IsRetryable(sendErr)}
		}
		ref = sent
		return nil
	}, d.retry)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrArtifactDelivery, err)
	}

	return ref, nil
}
