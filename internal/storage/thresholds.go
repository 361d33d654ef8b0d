package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/model"
)

// GetTierTable returns the tenant's configured tier table for an axis, or
// nil when the tenant has not configured one. Validation is the caller's
// concern; the engine fails loudly on non-monotonic tables instead of
// silently defaulting.
func (s *SQLiteStorage) GetTierTable(ctx context.Context, tenantID string, axis model.Axis) (model.TierTable, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	query := `
		SELECT level, name, color_token, lower_bound, upper_bound
		FROM rank_tiers
		WHERE tenant_id = ? AND axis = ?
		ORDER BY level`

	rows, err := s.db.QueryContext(ctx, query, tenantID, string(axis))
	if err != nil {
		return nil, fmt.Errorf("failed to query rank tiers: %w", err)
	}
	defer rows.Close()

	var table model.TierTable
	for rows.Next() {
		var tier model.RankTier
		if err := rows.Scan(&tier.Level, &tier.Name, &tier.ColorToken, &tier.LowerBound, &tier.UpperBound); err != nil {
			return nil, fmt.Errorf("failed to scan rank tier: %w", err)
		}
		table = append(table, tier)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rank tiers: %w", err)
	}

	if len(table) == 0 {
		return nil, nil
	}
	return table, nil
}

// SetTierTable replaces the tenant's tier table for an axis. The table must
// validate as strictly increasing before it is stored.
func (s *SQLiteStorage) SetTierTable(ctx context.Context, tenantID string, axis model.Axis, table model.TierTable) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidThresholds, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rank_tiers WHERE tenant_id = ? AND axis = ?`, tenantID, string(axis)); err != nil {
		return fmt.Errorf("failed to clear rank tiers: %w", err)
	}

	for _, tier := range table {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rank_tiers (tenant_id, axis, level, name, color_token, lower_bound, upper_bound)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tenantID, string(axis), tier.Level, tier.Name, tier.ColorToken, tier.LowerBound, tier.UpperBound); err != nil {
			return fmt.Errorf("failed to insert rank tier %d: %w", tier.Level, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rank tiers: %w", err)
	}
	return nil
}

// GetEconomicCap returns the tenant's economic normalization cap, 0 when
// unset.
func (s *SQLiteStorage) GetEconomicCap(ctx context.Context, tenantID string) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return 0, err
	}

	var economicCap float64
	err := s.db.QueryRowContext(ctx,
		`SELECT economic_cap FROM tenant_settings WHERE tenant_id = ?`, tenantID).Scan(&economicCap)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query economic cap: %w", err)
	}
	return economicCap, nil
}

// SetEconomicCap stores the tenant's economic normalization cap.
func (s *SQLiteStorage) SetEconomicCap(ctx context.Context, tenantID string, economicCap float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}
	if economicCap <= 0 {
		return fmt.Errorf("economic cap must be positive, got %.2f", economicCap)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, economic_cap)
		VALUES (?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET economic_cap = excluded.economic_cap`,
		tenantID, economicCap)
	if err != nil {
		return fmt.Errorf("failed to store economic cap: %w", err)
	}
	return nil
}
