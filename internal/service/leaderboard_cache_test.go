package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"inviterank/tracker/internal/model"
	"inviterank/tracker/internal/repository"
)

// countingReader records how often the leaderboard falls through to the store.
type countingReader struct {
	CounterReader
	getAll atomic.Int32
	err    error
}

func (r *countingReader) GetAll(ctx context.Context, groupID int64) (map[int64]model.InviteCounter, error) {
	r.getAll.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.CounterReader.GetAll(ctx, groupID)
}

func TestLeaderboard_OrdersByCountThenUserID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 30: 3 invites, 20: 2 invites, 10: 2 invites, 40: 1 invite
	for i := 0; i < 3; i++ {
		f.invite(t, 1, 30, int64(300+i), fmt.Sprintf("c-%d", i))
	}
	for i := 0; i < 2; i++ {
		f.invite(t, 1, 20, int64(200+i), fmt.Sprintf("b-%d", i))
		f.invite(t, 1, 10, int64(100+i), fmt.Sprintf("a-%d", i))
	}
	f.invite(t, 1, 40, 400, "d-0")

	snap, err := f.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 4)

	got := make([][3]int64, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		got = append(got, [3]int64{int64(e.Rank), e.UserID, e.Count})
	}
	assert.Equal(t, [][3]int64{
		{1, 30, 3},
		{2, 10, 2},
		{3, 20, 2},
		{4, 40, 1},
	}, got)
}

func TestLeaderboard_TruncatesToSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for user := int64(1); user <= 15; user++ {
		for i := int64(0); i < user; i++ {
			f.invite(t, 1, user, 1000*user+i, fmt.Sprintf("%d-%d", user, i))
		}
	}

	snap, err := f.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 10)
	assert.Equal(t, int64(15), snap.Entries[0].UserID)
	assert.Equal(t, int64(6), snap.Entries[9].UserID)
}

func TestLeaderboard_ServesCachedSnapshotUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reader := &countingReader{CounterReader: f.reader}
	cache := NewLeaderboardCache(reader, f.state, LeaderboardOptions{Size: 10, StalenessBound: time.Minute}, zaptest.NewLogger(t))

	f.invite(t, 1, 10, 20, "tok-1")

	first, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	second, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), reader.getAll.Load())
	assert.Equal(t, first.Entries, second.Entries)

	f.invite(t, 1, 10, 21, "tok-2")
	require.NoError(t, cache.Invalidate(ctx, 1))

	third, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), reader.getAll.Load())
	require.Len(t, third.Entries, 1)
	assert.Equal(t, int64(2), third.Entries[0].Count)
	assert.Greater(t, third.Generation, first.Generation)
}

func TestLeaderboard_ReflectsCommittedIncrement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.invite(t, 1, 10, 20, "tok-1")
	snap, err := f.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, int64(1), snap.Entries[0].Count)

	f.invite(t, 1, 10, 21, "tok-2")
	snap, err = f.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, int64(2), snap.Entries[0].Count)
}

func TestLeaderboard_ConcurrentReadersShareRebuilds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reader := &countingReader{CounterReader: f.reader}
	cache := NewLeaderboardCache(reader, f.state, LeaderboardOptions{}, zaptest.NewLogger(t))

	f.invite(t, 1, 10, 20, "tok")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Get(ctx, 1)
			if assert.NoError(t, err) {
				assert.Len(t, snap.Entries, 1)
			}
		}()
	}
	wg.Wait()

	// Late callers may miss the flight but then hit the stored snapshot.
	assert.LessOrEqual(t, reader.getAll.Load(), int32(20))
	assert.GreaterOrEqual(t, reader.getAll.Load(), int32(1))

	before := reader.getAll.Load()
	_, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before, reader.getAll.Load())
}

// blockingReader holds GetAll open until released, failing if its own ctx ends first.
type blockingReader struct {
	CounterReader
	entered chan struct{}
	release chan struct{}
	getAll  atomic.Int32
}

func (r *blockingReader) GetAll(ctx context.Context, groupID int64) (map[int64]model.InviteCounter, error) {
	if r.getAll.Add(1) == 1 {
		close(r.entered)
	}
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, fmt.Errorf("scan: %w: %w", ErrStoreUnavailable, ctx.Err())
	}
	return r.CounterReader.GetAll(ctx, groupID)
}

func TestLeaderboard_CancelledCallerDoesNotFailSharedRebuild(t *testing.T) {
	f := newFixture(t)
	reader := &blockingReader{
		CounterReader: f.reader,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	cache := NewLeaderboardCache(reader, f.state, LeaderboardOptions{}, zaptest.NewLogger(t))

	f.invite(t, 1, 10, 20, "tok")

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(firstCtx, 1)
		firstErr <- err
	}()
	<-reader.entered

	type result struct {
		snap *LeaderboardSnapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := cache.Get(context.Background(), 1)
		second <- result{snap, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(reader.release)
	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.snap.Entries, 1)
	assert.Equal(t, int64(1), res.snap.Entries[0].Count)
	assert.Equal(t, int32(1), reader.getAll.Load())
}

func TestLeaderboard_IgnoresSnapshotFromOlderGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.invite(t, 1, 10, 20, "tok")
	snap, err := f.cache.Get(ctx, 1)
	require.NoError(t, err)

	// Bump the generation without going through the counter store.
	_, err = f.state.Incr(ctx, generationKey(1))
	require.NoError(t, err)

	fresh, err := f.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, snap.Generation+1, fresh.Generation)
}

func TestLeaderboard_StoreFailure(t *testing.T) {
	f := newFixture(t)
	reader := &countingReader{
		CounterReader: f.reader,
		err:           fmt.Errorf("scan: %w: %w", ErrStoreUnavailable, errors.New("down")),
	}
	cache := NewLeaderboardCache(reader, f.state, LeaderboardOptions{}, zaptest.NewLogger(t))

	_, err := cache.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestLeaderboard_EmptyGroupAndNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)

	_, err = f.counters.Increment(ctx, IncrementRequest{GroupID: 1, InviterID: 10, JoinedUserID: 20, DedupToken: "a", DisplayName: strPtr("Alice")})
	require.NoError(t, err)
	f.invite(t, 1, 11, 21, "b")

	snap, err = f.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "Alice", snap.Entries[0].Name())
	assert.Equal(t, "Unknown User", snap.Entries[1].Name())
}

func TestLeaderboard_StaleSnapshotExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	state := repository.NewMemoryStateStore()
	reader := &countingReader{CounterReader: f.reader}
	cache := NewLeaderboardCache(reader, state, LeaderboardOptions{StalenessBound: 10 * time.Millisecond}, zaptest.NewLogger(t))

	f.invite(t, 1, 10, 20, "tok")
	snap, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, snap.StaleAfter.IsZero())

	time.Sleep(20 * time.Millisecond)
	_, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), reader.getAll.Load())
}
