package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// ─────────────────────────────────────────────────────────────────────────────
// Run lock
// ─────────────────────────────────────────────────────────────────────────────

func TestRunLockAcquireRelease(t *testing.T) {
	mr, client := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())

	ctx := context.Background()
	lock := factory.ForRun("abc123", WithLockTTL(time.Second))

	require.NoError(t, lock.TryAcquire(ctx))
	assert.True(t, mr.Exists("dockprep:runlock:abc123"))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("dockprep:runlock:abc123"))
}

func TestRunLockConflict(t *testing.T) {
	_, client := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())

	ctx := context.Background()
	first := factory.ForRun("samekey", WithLockTTL(time.Second))
	second := factory.ForRun("samekey", WithLockTTL(time.Second))

	require.NoError(t, first.TryAcquire(ctx))
	err := second.TryAcquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRunConflict))

	// Distinct run keys never contend.
	other := factory.ForRun("otherkey", WithLockTTL(time.Second))
	assert.NoError(t, other.TryAcquire(ctx))
}

func TestRunLockReleaseByNonOwner(t *testing.T) {
	_, client := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())

	ctx := context.Background()
	owner := factory.ForRun("owned", WithLockTTL(time.Second))
	intruder := factory.ForRun("owned", WithLockTTL(time.Second))

	require.NoError(t, owner.TryAcquire(ctx))
	assert.ErrorIs(t, intruder.Release(ctx), ErrLockNotHeld)

	// The owner still holds the lock afterward.
	assert.Error(t, intruder.TryAcquire(ctx))
	assert.NoError(t, owner.Release(ctx))
}

func TestRunLockExtend(t *testing.T) {
	mr, client := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())

	ctx := context.Background()
	lock := factory.ForRun("extendme", WithLockTTL(time.Second))
	require.NoError(t, lock.TryAcquire(ctx))

	ok, err := lock.Extend(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, mr.TTL("dockprep:runlock:extendme"), 2*time.Second)
}

func TestRunLockExpires(t *testing.T) {
	mr, client := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())

	ctx := context.Background()
	lock := factory.ForRun("expiring", WithLockTTL(100*time.Millisecond))
	require.NoError(t, lock.TryAcquire(ctx))

	mr.FastForward(200 * time.Millisecond)

	// A crashed holder's lock is free for the next attempt.
	next := factory.ForRun("expiring", WithLockTTL(time.Second))
	assert.NoError(t, next.TryAcquire(ctx))
}

// ─────────────────────────────────────────────────────────────────────────────
// Pose cache
// ─────────────────────────────────────────────────────────────────────────────

func sampleResult() *docking.Result {
	return &docking.Result{
		Poses: []docking.Pose{
			{Rank: 1, Affinity: -9.1, RMSDLower: 0, RMSDUpper: 0},
			{Rank: 2, Affinity: -8.4, RMSDLower: 1.2, RMSDUpper: 2.0},
		},
	}
}

func TestPoseCacheRoundTrip(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewPoseCache(client, logging.NewNopLogger())

	ctx := context.Background()
	_, err := cache.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Put(ctx, "key1", sampleResult()))

	got, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	require.Len(t, got.Poses, 2)
	assert.InDelta(t, -9.1, got.Poses[0].Affinity, 1e-9)

	require.NoError(t, cache.Invalidate(ctx, "key1"))
	_, err = cache.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestPoseCacheCorruptEntryBehavesAsMiss(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewPoseCache(client, logging.NewNopLogger())

	require.NoError(t, mr.Set("dockprep:poses:bad", "{not json"))
	_, err := cache.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewPoseCache(client, logging.NewNopLogger())

	var computes int32
	compute := func(ctx context.Context) (*docking.Result, error) {
		atomic.AddInt32(&computes, 1)
		time.Sleep(20 * time.Millisecond)
		return sampleResult(), nil
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.GetOrCompute(ctx, "shared", compute)
			assert.NoError(t, err)
			assert.Len(t, got.Poses, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))

	// A later call is served from the cache.
	_, err := cache.GetOrCompute(ctx, "shared", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&computes))
}

func TestGetOrComputePropagatesFailure(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewPoseCache(client, logging.NewNopLogger())

	boom := errors.New(errors.ErrCodeInternal, "engine blew up")
	_, err := cache.GetOrCompute(context.Background(), "failing",
		func(ctx context.Context) (*docking.Result, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}
