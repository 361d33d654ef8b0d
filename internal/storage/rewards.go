package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/model"
)

const rewardColumns = `id, user_id, tenant_id, rank_level, status,
	badge_minted, badge_ref, artifact_sent, artifact_ref,
	failure_reason, score, threshold, created_at`

// FindRecord returns the distribution record for the idempotency key, or
// common.ErrNotFound when no issuance attempt exists.
func (s *SQLiteStorage) FindRecord(ctx context.Context, userID, tenantID string, rankLevel int) (*model.RewardDistributionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateSubject(tenantID, userID); err != nil {
		return nil, err
	}

	query := `SELECT ` + rewardColumns + `
		FROM reward_distributions
		WHERE user_id = ? AND tenant_id = ? AND rank_level = ?`

	rec, err := scanRewardRecord(s.db.QueryRowContext(ctx, query, userID, tenantID, rankLevel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution record: %w", err)
	}
	return rec, nil
}

// InsertRecord claims the issuance slot for the record's idempotency key.
// A concurrent or repeated claim surfaces as common.ErrDuplicateEntry.
func (s *SQLiteStorage) InsertRecord(ctx context.Context, record *model.RewardDistributionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDistributionRecord(record); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reward_distributions
			(id, user_id, tenant_id, rank_level, status,
			 badge_minted, badge_ref, artifact_sent, artifact_ref,
			 failure_reason, score, threshold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.TenantID, record.RankLevel, string(record.Status),
		record.BadgeMinted, record.BadgeRef, record.ArtifactSent, record.ArtifactRef,
		record.FailureReason, record.Score, record.Threshold, record.CreatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return common.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert distribution record: %w", err)
	}
	return nil
}

// FinalizeRecord writes the outcome of the issuance attempt onto the claimed
// record. Terminal records are never overwritten.
func (s *SQLiteStorage) FinalizeRecord(ctx context.Context, record *model.RewardDistributionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDistributionRecord(record); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE reward_distributions
		SET status = ?, badge_minted = ?, badge_ref = ?,
			artifact_sent = ?, artifact_ref = ?, failure_reason = ?
		WHERE id = ? AND status = ?`,
		string(record.Status), record.BadgeMinted, record.BadgeRef,
		record.ArtifactSent, record.ArtifactRef, record.FailureReason,
		record.ID, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to finalize distribution record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finalize result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("distribution record %s is not pending: %w", record.ID, common.ErrDuplicateEntry)
	}
	return nil
}

// ListRecords returns a subject's distribution records ordered by rank
// level, the operator-facing audit view.
func (s *SQLiteStorage) ListRecords(ctx context.Context, userID, tenantID string) ([]model.RewardDistributionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateSubject(tenantID, userID); err != nil {
		return nil, err
	}

	query := `SELECT ` + rewardColumns + `
		FROM reward_distributions
		WHERE user_id = ? AND tenant_id = ?
		ORDER BY rank_level`

	rows, err := s.db.QueryContext(ctx, query, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution records: %w", err)
	}
	defer rows.Close()

	var records []model.RewardDistributionRecord
	for rows.Next() {
		rec, scanErr := scanRewardRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan distribution record: %w", scanErr)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distribution records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRewardRecord(row rowScanner) (*model.RewardDistributionRecord, error) {
	var rec model.RewardDistributionRecord
	var status string
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.TenantID, &rec.RankLevel, &status,
		&rec.BadgeMinted, &rec.BadgeRef, &rec.ArtifactSent, &rec.ArtifactRef,
		&rec.FailureReason, &rec.Score, &rec.Threshold, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Status = model.DistributionStatus(status)
	return &rec, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
