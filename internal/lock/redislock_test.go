package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-sales-stats/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client}, mr
}

func TestTryWithLockFailsFast(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	err := locker.TryWithLock(ctx, "run", time.Minute, func(ctx context.Context) error {
		require.True(t, mr.Exists("run"))
		inner := locker.TryWithLock(ctx, "run", time.Minute, func(context.Context) error {
			t.Fatal("nested run must not start")
			return nil
		})
		require.ErrorIs(t, inner, lock.ErrLocked)
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("run"), "lock released after callback")
}

func TestTryWithLockPropagatesAndReleases(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.TryWithLock(context.Background(), "run", time.Minute, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("run"))
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	locker, mr := newLocker(t)

	err := locker.TryWithLock(context.Background(), "run", time.Minute, func(context.Context) error {
		// the lock expired and someone else took over
		require.NoError(t, mr.Set("run", "other-holder"))
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("run")
	require.NoError(t, err)
	require.Equal(t, "other-holder", got)
}

func TestLockerNotConfigured(t *testing.T) {
	err := lock.Locker{}.TryWithLock(context.Background(), "run", time.Minute, func(context.Context) error { return nil })
	require.Error(t, err)
	locker, _ := newLocker(t)
	require.Error(t, locker.TryWithLock(context.Background(), "run", time.Minute, nil))
}
