package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: activity ledger mirror",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS activity_records (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					tenant_id TEXT NOT NULL,
					sender_id TEXT NOT NULL,
					receiver_id TEXT NOT NULL,
					amount REAL NOT NULL,
					axis_tag TEXT NOT NULL,
					annotation TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_activity_subject ON activity_records(tenant_id, sender_id)`,
				`CREATE INDEX idx_activity_created ON activity_records(created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Rank thresholds and tenant settings",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS rank_tiers (
					tenant_id TEXT NOT NULL,
					axis TEXT NOT NULL,
					level INTEGER NOT NULL,
					name TEXT NOT NULL,
					color_token TEXT NOT NULL DEFAULT '',
					lower_bound REAL NOT NULL,
					upper_bound REAL NOT NULL DEFAULT 0,
					PRIMARY KEY (tenant_id, axis, level)
				)`,
				`CREATE TABLE IF NOT EXISTS tenant_settings (
					tenant_id TEXT PRIMARY KEY,
					economic_cap REAL NOT NULL DEFAULT 0
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Reward distribution records and rank transition state",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS reward_distributions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					tenant_id TEXT NOT NULL,
					rank_level INTEGER NOT NULL,
					status TEXT NOT NULL,
					badge_minted INTEGER NOT NULL DEFAULT 0,
					badge_ref TEXT NOT NULL DEFAULT '',
					artifact_sent INTEGER NOT NULL DEFAULT 0,
					artifact_ref TEXT NOT NULL DEFAULT '',
					failure_reason TEXT NOT NULL DEFAULT '',
					score REAL NOT NULL DEFAULT 0,
					threshold REAL NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				// The idempotency key: at most one issuance attempt per
				// (user, tenant, rank level).
				`CREATE UNIQUE INDEX idx_reward_idempotency
					ON reward_distributions(user_id, tenant_id, rank_level)`,

				`CREATE TABLE IF NOT EXISTS rank_state (
					tenant_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					previous_level INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (tenant_id, user_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_versions`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_versions (version) VALUES (?)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
