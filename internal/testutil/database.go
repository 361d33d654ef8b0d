// Package testutil provides test fixtures for the contribution engine.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/storage"
)

// TestDB wraps an in-memory SQLite store with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database with automatic cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	s, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return &TestDB{Storage: s, t: t}
}

// SeedActivity inserts one settled transfer for the subject and returns it.
func (db *TestDB) SeedActivity(tenantID, userID, axisTag string, amount float64, createdAt time.Time, annotation string) model.ActivityRecord {
	db.t.Helper()

	record := model.ActivityRecord{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		SenderID:   userID,
		ReceiverID: "creator-" + tenantID,
		AxisTag:    axisTag,
		Amount:     amount,
		Annotation: annotation,
		CreatedAt:  createdAt,
	}

	if _, err := db.Storage.SaveActivityRecords(context.Background(), []model.ActivityRecord{record}); err != nil {
		db.t.Fatalf("failed to seed activity record: %v", err)
	}
	return record
}

// SeedTierTable stores a tier table for the tenant and axis.
func (db *TestDB) SeedTierTable(tenantID string, axis model.Axis, table model.TierTable) {
	db.t.Helper()

	if err := db.Storage.SetTierTable(context.Background(), tenantID, axis, table); err != nil {
		db.t.Fatalf("failed to seed tier table: %v", err)
	}
}
