package runlog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-sales-stats/internal/runlog"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

func newStore(t *testing.T, history int) runlog.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return runlog.Store{R: client, History: history}
}

func TestLastBeforeAnyRun(t *testing.T) {
	store := newStore(t, 0)
	_, err := store.Last(context.Background())
	require.ErrorIs(t, err, runlog.ErrNotFound)
}

func TestSaveAndReadBack(t *testing.T) {
	store := newStore(t, 2)
	ctx := context.Background()
	started := time.Date(2025, 4, 1, 3, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		report := sales.Report{
			RunID:      fmt.Sprintf("run-%d", i),
			StartedAt:  started.Add(time.Duration(i) * time.Hour),
			FinishedAt: started.Add(time.Duration(i)*time.Hour + time.Minute),
			Fold:       sales.FoldStats{Orders: i * 10, UnattributedRefund: 5},
			Write:      sales.WriteResult{Batches: 1, Applied: 4},
		}
		if i == 3 {
			report.Error = "partial write"
		}
		require.NoError(t, store.Save(ctx, report))
	}

	last, err := store.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, "run-3", last.RunID)
	require.False(t, last.Succeeded())
	require.Equal(t, 30, last.Fold.Orders)
	require.True(t, last.StartedAt.Equal(started.Add(3*time.Hour)))

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "run-3", recent[0].RunID)
	require.Equal(t, "run-2", recent[1].RunID)
}
