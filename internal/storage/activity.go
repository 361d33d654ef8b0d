package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crescendoapp/crescendo/internal/model"
)

// SaveActivityRecords inserts settled transfer records into the local ledger
// mirror, skipping records whose content hash is already present.
// Returns the number of newly inserted records.
func (s *SQLiteStorage) SaveActivityRecords(ctx context.Context, records []model.ActivityRecord) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO activity_records
			(id, hash, tenant_id, sender_id, receiver_id, amount, axis_tag, annotation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range records {
		rec := &records[i]
		if err := validateActivityRecord(rec); err != nil {
			return 0, err
		}
		if rec.Hash == "" {
			rec.Hash = rec.GenerateHash()
		}

		result, execErr := stmt.ExecContext(ctx,
			rec.ID, rec.Hash, rec.TenantID, rec.SenderID, rec.ReceiverID,
			rec.Amount, strings.ToLower(rec.AxisTag), rec.Annotation, rec.CreatedAt.UTC())
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert activity record %s: %w", rec.ID, execErr)
		}
		if n, raErr := result.RowsAffected(); raErr == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit activity records: %w", err)
	}

	slog.Debug("saved activity records", "total", len(records), "inserted", inserted)
	return inserted, nil
}

// ListActivity returns a subject's settled records, optionally bounded below
// by since. Ordering is by creation time ascending, though callers must not
// rely on it.
func (s *SQLiteStorage) ListActivity(ctx context.Context, tenantID, userID string, since *time.Time) ([]model.ActivityRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateSubject(tenantID, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, hash, tenant_id, sender_id, receiver_id, amount, axis_tag, annotation, created_at
		FROM activity_records
		WHERE tenant_id = ? AND sender_id = ?`
	args := []any{tenantID, userID}

	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity records: %w", err)
	}
	defer rows.Close()

	var records []model.ActivityRecord
	for rows.Next() {
		var rec model.ActivityRecord
		var annotation sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Hash, &rec.TenantID, &rec.SenderID, &rec.ReceiverID,
			&rec.Amount, &rec.AxisTag, &annotation, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}
		rec.Annotation = annotation.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity records: %w", err)
	}

	return records, nil
}
