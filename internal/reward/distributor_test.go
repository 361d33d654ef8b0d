package reward

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryDistributionStore struct {
	records map[string]*model.RewardDistributionRecord
	mu      sync.Mutex
}

func newMemoryDistributionStore() *memoryDistributionStore {
	return &memoryDistributionStore{records: make(map[string]*model.RewardDistributionRecord)}
}

func key(userID, tenantID string, rankLevel int) string {
	return fmt.Sprintf("%s/%s/%d", userID, tenantID, rankLevel)
}

func (m *memoryDistributionStore) FindRecord(_ context.Context, userID, tenantID string, rankLevel int) (*model.RewardDistributionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key(userID, tenantID, rankLevel)]
	if !ok {
		return nil, common.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memoryDistributionStore) InsertRecord(_ context.Context, record *model.RewardDistributionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(record.UserID, record.TenantID, record.RankLevel)
	if _, exists := m.records[k]; exists {
		return common.ErrDuplicateEntry
	}
	clone := *record
	m.records[k] = &clone
	return nil
}

func (m *memoryDistributionStore) FinalizeRecord(_ context.Context, record *model.RewardDistributionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.records[key(record.UserID, record.TenantID, record.RankLevel)] = &clone
	return nil
}

func (m *memoryDistributionStore) ListRecords(_ context.Context, userID, tenantID string) ([]model.RewardDistributionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RewardDistributionRecord
	for _, rec := range m.records {
		if rec.UserID == userID && rec.TenantID == tenantID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type stubMinter struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubMinter) MintBadge(_ context.Context, userID string, rankLevel int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("badge-%s-%d", userID, rankLevel), nil
}

type stubArtifacts struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubArtifacts) DistributeArtifact(_ context.Context, userID, artifactID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("artifact-%s-%s", userID, artifactID), nil
}

func TestDistribute(t *testing.T) {
	ctx := context.Background()

	t.Run("mints badge and bonus artifact", func(t *testing.T) {
		store := newMemoryDistributionStore()
		minter := &stubMinter{}
		artifacts := &stubArtifacts{}
		d := NewDistributor(store, minter, artifacts, WithBonuses(BonusConfig{3: "golden-vinyl"}))

		rec, err := d.Distribute(ctx, "user-1", "tenant-1", 3, 450, 400)
		require.NoError(t, err)

		assert.Equal(t, model.StatusCompleted, rec.Status)
		assert.True(t, rec.BadgeMinted)
		assert.Equal(t, "badge-user-1-3", rec.BadgeRef)
		assert.True(t, rec.ArtifactSent)
		assert.Equal(t, "artifact-user-1-golden-vinyl", rec.ArtifactRef)
		assert.Equal(t, 450.0, rec.Score)
		assert.Equal(t, 400.0, rec.Threshold)
	})

	t.Run("no bonus configured mints badge only", func(t *testing.T) {
		store := newMemoryDistributionStore()
		artifacts := &stubArtifacts{}
		d := NewDistributor(store, &stubMinter{}, artifacts)

		rec, err := d.Distribute(ctx, "user-1", "tenant-1", 2, 120, 100)
		require.NoError(t, err)

		assert.Equal(t, model.StatusCompleted, rec.Status)
		assert.False(t, rec.ArtifactSent)
		assert.Equal(t, 0, artifacts.calls)
	})

	t.Run("second call is an idempotent no-op", func(t *testing.T) {
		store := newMemoryDistributionStore()
		minter := &stubMinter{}
		d := NewDistributor(store, minter, &stubArtifacts{})

		first, err := d.Distribute(ctx, "user-1", "tenant-1", 2, 120, 100)
		require.NoError(t, err)

		second, err := d.Distribute(ctx, "user-1", "tenant-1", 2, 500, 100)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Score, second.Score, "existing record must be returned unchanged")
		assert.Equal(t, 1, minter.calls)

		records, err := store.ListRecords(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("badge failure does not prevent artifact delivery", func(t *testing.T) {
		store := newMemoryDistributionStore()
		d := NewDistributor(store,
			&stubMinter{err: errors.New("mint service down")},
			&stubArtifacts{},
			WithBonuses(BonusConfig{4: "signed-print"}))

		rec, err := d.Distribute(ctx, "user-1", "tenant-1", 4, 700, 600)
		require.NoError(t, err)

		assert.Equal(t, model.StatusCompleted, rec.Status, "partial success is a valid terminal outcome")
		assert.False(t, rec.BadgeMinted)
		assert.True(t, rec.ArtifactSent)
		assert.Contains(t, rec.FailureReason, "badge")
	})

	t.Run("all side effects failing marks the record failed", func(t *testing.T) {
		store := newMemoryDistributionStore()
		d := NewDistributor(store,
			&stubMinter{err: errors.New("mint down")},
			&stubArtifacts{err: errors.New("delivery down")},
			WithBonuses(BonusConfig{2: "sticker-pack"}))

		rec, err := d.Distribute(ctx, "user-1", "tenant-1", 2, 150, 100)
		require.NoError(t, err)

		assert.Equal(t, model.StatusFailed, rec.Status)
		assert.Contains(t, rec.FailureReason, "badge")
		assert.Contains(t, rec.FailureReason, "artifact")
	})

	t.Run("concurrent claims produce exactly one record", func(t *testing.T) {
		store := newMemoryDistributionStore()
		minter := &stubMinter{}
		d := NewDistributor(store, minter, &stubArtifacts{})

		const racers = 10
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := d.Distribute(ctx, "user-1", "tenant-1", 3, 450, 400)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		records, err := store.ListRecords(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 1, minter.calls)
	})

	t.Run("duplicate mint counts as badge success", func(t *testing.T) {
		store := newMemoryDistributionStore()
		d := NewDistributor(store, &stubMinter{err: common.ErrDuplicateMint}, &stubArtifacts{})

		rec, err := d.Distribute(ctx, "user-1", "tenant-1", 2, 150, 100)
		require.NoError(t, err)

		// The service holds the badge from an earlier attempt; the reward
		// exists, only our reference is unknown.
		assert.Equal(t, model.StatusCompleted, rec.Status)
		assert.True(t, rec.BadgeMinted)
		assert.Empty(t, rec.BadgeRef)
		assert.Empty(t, rec.FailureReason)
	})

	t.Run("transient mint failures are retried", func(t *testing.T) {
		store := newMemoryDistributionStore()
		minter := &flakyMinter{failures: 2}
		d := NewDistributor(store, minter, &stubArtifacts{},
			WithRetryOptions(service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond}))

		rec, err := d.Distribute(ctx, "user-1", "tenant-1", 2, 150, 100)
		require.NoError(t, err)

		assert.Equal(t, model.StatusCompleted, rec.Status)
		assert.True(t, rec.BadgeMinted)
		assert.Equal(t, 3, minter.calls)
	})

	t.Run("permanent mint failures are not retried", func(t *testing.T) {
		store := newMemoryDistributionStore()
		minter := &stubMinter{err: errors.New("mint rejected")}
		d := NewDistributor(store, minter, &stubArtifacts{},
			WithRetryOptions(service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond}))

		rec, err := d.Distribute(ctx, "user-1", "tenant-1", 2, 150, 100)
		require.NoError(t, err)

		assert.Equal(t, model.StatusFailed, rec.Status)
		assert.Equal(t, 1, minter.calls)
	})
}

// flakyMinter times out a fixed number of times before succeeding.
type flakyMinter struct {
	failures int
	calls    int
	mu       sync.Mutex
}

func (f *flakyMinter) MintBadge(_ context.Context, userID string, rankLevel int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", context.DeadlineExceeded
	}
	return fmt.Sprintf("badge-%s-%d", userID, rankLevel), nil
}
