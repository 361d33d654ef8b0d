package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/model"
)

func setupStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func activityRecord(tenantID, userID, tag string, amount float64, createdAt time.Time) model.ActivityRecord {
	return model.ActivityRecord{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		SenderID:   userID,
		ReceiverID: "creator-1",
		AxisTag:    tag,
		Amount:     amount,
		CreatedAt:  createdAt,
	}
}

func TestActivityRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []model.ActivityRecord{
		activityRecord("tenant-1", "user-1", "economic", 500, base),
		activityRecord("tenant-1", "user-1", "resonance", 0, base.Add(24*time.Hour)),
		activityRecord("tenant-1", "user-2", "economic", 100, base),
	}

	inserted, err := s.SaveActivityRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	got, err := s.ListActivity(ctx, "tenant-1", "user-1", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "economic", got[0].AxisTag)
	assert.Equal(t, 500.0, got[0].Amount)

	t.Run("since bound filters older records", func(t *testing.T) {
		since := base.Add(time.Hour)
		got, err := s.ListActivity(ctx, "tenant-1", "user-1", &since)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("duplicate hashes are skipped", func(t *testing.T) {
		dup := records[0]
		dup.ID = uuid.NewString()
		dup.Hash = ""

		inserted, err := s.SaveActivityRecords(ctx, []model.ActivityRecord{dup})
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)
	})

	t.Run("unknown subject returns no records", func(t *testing.T) {
		got, err := s.ListActivity(ctx, "tenant-1", "stranger", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestTierTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	t.Run("unset tenant returns nil", func(t *testing.T) {
		table, err := s.GetTierTable(ctx, "tenant-1", model.AxisEconomic)
		require.NoError(t, err)
		assert.Nil(t, table)
	})

	table := model.TierTable{
		{Level: 1, Name: "Seed", ColorToken: "#aaa", LowerBound: 0, UpperBound: 100},
		{Level: 2, Name: "Sprout", ColorToken: "#bbb", LowerBound: 100, UpperBound: 500},
		{Level: 3, Name: "Bloom", ColorToken: "#ccc", LowerBound: 500, UpperBound: 0},
	}
	require.NoError(t, s.SetTierTable(ctx, "tenant-1", model.AxisEconomic, table))

	got, err := s.GetTierTable(ctx, "tenant-1", model.AxisEconomic)
	require.NoError(t, err)
	assert.Equal(t, table, got)

	t.Run("non-monotonic table is rejected", func(t *testing.T) {
		broken := model.TierTable{
			{Level: 1, Name: "A", LowerBound: 100, UpperBound: 200},
			{Level: 2, Name: "B", LowerBound: 50, UpperBound: 80},
		}
		err := s.SetTierTable(ctx, "tenant-1", model.AxisEconomic, broken)
		assert.ErrorIs(t, err, common.ErrInvalidThresholds)
	})

	t.Run("axes are independent", func(t *testing.T) {
		got, err := s.GetTierTable(ctx, "tenant-1", model.AxisResonance)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestEconomicCap(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	got, err := s.GetEconomicCap(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	require.NoError(t, s.SetEconomicCap(ctx, "tenant-1", 9000))

	got, err = s.GetEconomicCap(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 9000.0, got)

	assert.Error(t, s.SetEconomicCap(ctx, "tenant-1", -1))
}

func TestRewardRecords(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	record := &model.RewardDistributionRecord{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		TenantID:  "tenant-1",
		RankLevel: 2,
		Status:    model.StatusPending,
		Score:     150,
		Threshold: 100,
		CreatedAt: time.Now().UTC(),
	}

	t.Run("find before insert reports not found", func(t *testing.T) {
		_, err := s.FindRecord(ctx, "user-1", "tenant-1", 2)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	require.NoError(t, s.InsertRecord(ctx, record))

	t.Run("idempotency key rejects duplicate claims", func(t *testing.T) {
		clone := *record
		clone.ID = uuid.NewString()
		err := s.InsertRecord(ctx, &clone)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("finalize records the outcome once", func(t *testing.T) {
		record.Status = model.StatusCompleted
		record.BadgeMinted = true
		record.BadgeRef = "badge-ref-1"
		require.NoError(t, s.FinalizeRecord(ctx, record))

		got, err := s.FindRecord(ctx, "user-1", "tenant-1", 2)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, got.Status)
		assert.True(t, got.BadgeMinted)
		assert.Equal(t, "badge-ref-1", got.BadgeRef)

		// The record is terminal; a second finalize must not rewrite it.
		record.BadgeRef = "tampered"
		assert.Error(t, s.FinalizeRecord(ctx, record))
	})

	t.Run("list returns records ordered by level", func(t *testing.T) {
		higher := &model.RewardDistributionRecord{
			ID:        uuid.NewString(),
			UserID:    "user-1",
			TenantID:  "tenant-1",
			RankLevel: 3,
			Status:    model.StatusFailed,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.InsertRecord(ctx, higher))

		records, err := s.ListRecords(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 2, records[0].RankLevel)
		assert.Equal(t, 3, records[1].RankLevel)
	})
}

func TestRankState(t *testing.T) {
	ctx := context.Background()
	s := setupStorage(t)

	level, err := s.GetPreviousLevel(ctx, "tenant-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, level, "unobserved subject starts at level 0")

	require.NoError(t, s.SetPreviousLevel(ctx, "tenant-1", "user-1", 2))
	require.NoError(t, s.SetPreviousLevel(ctx, "tenant-1", "user-1", 3))

	level, err = s.GetPreviousLevel(ctx, "tenant-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, level)

	t.Run("subjects do not share state", func(t *testing.T) {
		level, err := s.GetPreviousLevel(ctx, "tenant-1", "user-2")
		require.NoError(t, err)
		assert.Equal(t, 0, level)
	})
}
