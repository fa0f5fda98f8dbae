package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/service"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "classify:ana@example.com:7", Key("ana@example.com", 7))
}

func TestMemoryExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	unlock, err := m.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = m.TryLock(ctx, "k", time.Minute)
	require.ErrorIs(t, err, common.ErrJobInProgress)

	other, err := m.TryLock(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Unlock(ctx))

	require.NoError(t, unlock.Unlock(ctx))
	assert.ErrorIs(t, unlock.Unlock(ctx), ErrNotHeld)

	again, err := m.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Unlock(ctx))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	stale, err := m.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := m.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Unlock(ctx), ErrNotHeld, "expired holder must not release the new lock")
	require.NoError(t, fresh.Unlock(ctx))
}

func TestMemoryConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.TryLock(ctx, "k", time.Minute); err == nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load())
}

func TestMemoryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

// Requires a reachable Redis; set SPICE_TEST_REDIS_ADDR to run.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("SPICE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SPICE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var locker service.Locker = NewRedis(client, "spice:test:"+uuid.NewString()+":")

	unlock, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "k", time.Minute)
	require.ErrorIs(t, err, common.ErrJobInProgress)

	require.NoError(t, unlock.Unlock(ctx))
	assert.ErrorIs(t, unlock.Unlock(ctx), ErrNotHeld)
}
