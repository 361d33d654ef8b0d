package rankup

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStateStore struct {
	levels map[string]int
	mu     sync.Mutex
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{levels: make(map[string]int)}
}

func (m *memoryStateStore) GetPreviousLevel(_ context.Context, tenantID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[tenantID+"/"+userID], nil
}

func (m *memoryStateStore) SetPreviousLevel(_ context.Context, tenantID, userID string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[tenantID+"/"+userID] = level
	return nil
}

func TestDetectorObserve(t *testing.T) {
	ctx := context.Background()

	t.Run("first observation seeds without firing", func(t *testing.T) {
		d := NewDetector(newMemoryStateStore())

		obs, err := d.Observe(ctx, "tenant-1", "user-1", 3)
		require.NoError(t, err)
		assert.False(t, obs.Fired)
		assert.Equal(t, 0, obs.PreviousLevel)
		assert.Equal(t, 3, obs.NewLevel)
	})

	t.Run("fires once per boundary crossing", func(t *testing.T) {
		d := NewDetector(newMemoryStateStore())

		_, err := d.Observe(ctx, "tenant-1", "user-1", 1)
		require.NoError(t, err)

		obs, err := d.Observe(ctx, "tenant-1", "user-1", 2)
		require.NoError(t, err)
		assert.True(t, obs.Fired)
		assert.Equal(t, 1, obs.PreviousLevel)
		assert.Equal(t, 2, obs.NewLevel)

		// Re-observing the same level must not fire again.
		obs, err = d.Observe(ctx, "tenant-1", "user-1", 2)
		require.NoError(t, err)
		assert.False(t, obs.Fired)
	})

	t.Run("multi-tier jump fires a single observation", func(t *testing.T) {
		d := NewDetector(newMemoryStateStore())

		_, err := d.Observe(ctx, "tenant-1", "user-1", 1)
		require.NoError(t, err)

		obs, err := d.Observe(ctx, "tenant-1", "user-1", 4)
		require.NoError(t, err)
		assert.True(t, obs.Fired)
		assert.Equal(t, 1, obs.PreviousLevel)
		assert.Equal(t, 4, obs.NewLevel)
	})

	t.Run("level decrease never fires but still updates state", func(t *testing.T) {
		store := newMemoryStateStore()
		d := NewDetector(store)

		_, err := d.Observe(ctx, "tenant-1", "user-1", 3)
		require.NoError(t, err)

		obs, err := d.Observe(ctx, "tenant-1", "user-1", 2)
		require.NoError(t, err)
		assert.False(t, obs.Fired)

		level, err := store.GetPreviousLevel(ctx, "tenant-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, 2, level)
	})

	t.Run("subjects are independent", func(t *testing.T) {
		d := NewDetector(newMemoryStateStore())

		_, err := d.Observe(ctx, "tenant-1", "user-a", 2)
		require.NoError(t, err)

		obs, err := d.Observe(ctx, "tenant-1", "user-b", 5)
		require.NoError(t, err)
		assert.False(t, obs.Fired, "first observation for a different subject must not fire")
	})
}

func TestDetectorConcurrentSameSubject(t *testing.T) {
	ctx := context.Background()
	d := NewDetector(newMemoryStateStore())

	_, err := d.Observe(ctx, "tenant-1", "user-1", 1)
	require.NoError(t, err)

	// Two racing evaluations both resolving level 2: at most one may fire.
	const racers = 8
	fired := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obs, obsErr := d.Observe(ctx, "tenant-1", "user-1", 2)
			if obsErr == nil && obs.Fired {
				mu.Lock()
				fired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fired)
}
