package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetPreviousLevel returns the last observed rank level for a subject,
// 0 when the subject has never been observed.
func (s *SQLiteStorage) GetPreviousLevel(ctx context.Context, tenantID, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateSubject(tenantID, userID); err != nil {
		return 0, err
	}

	var level int
	err := s.db.QueryRowContext(ctx,
		`SELECT previous_level FROM rank_state WHERE tenant_id = ? AND user_id = ?`,
		tenantID, userID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query rank state: %w", err)
	}
	return level, nil
}

// SetPreviousLevel stores the freshly observed rank level for a subject.
func (s *SQLiteStorage) SetPreviousLevel(ctx context.Context, tenantID, userID string, level int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSubject(tenantID, userID); err != nil {
		return err
	}
	if level < 0 {
		return fmt.Errorf("rank level cannot be negative, got %d", level)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rank_state (tenant_id, user_id, previous_level, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id, user_id) DO UPDATE SET
			previous_level = excluded.previous_level,
			updated_at = CURRENT_TIMESTAMP`,
		tenantID, userID, level)
	if err != nil {
		return fmt.Errorf("failed to store rank state: %w", err)
	}
	return nil
}
