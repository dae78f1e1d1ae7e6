package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"inviterank/tracker/internal/repository"
)

const unknownUserName = "Unknown User"

type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      int64   `json:"user_id"`
	DisplayName *string `json:"display_name,omitempty"`
	Count       int64   `json:"count"`
}

// Name returns the cached display name, or a placeholder when none is known.
func (e LeaderboardEntry) Name() string {
	if e.DisplayName == nil || *e.DisplayName == "" {
		return unknownUserName
	}
	return *e.DisplayName
}

// LeaderboardSnapshot is an immutable ranking of a group's top inviters.
// Callers must not modify it.
type LeaderboardSnapshot struct {
	GroupID    int64              `json:"group_id"`
	Entries    []LeaderboardEntry `json:"entries"`
	Generation int64              `json:"generation"`
	BuiltAt    time.Time          `json:"built_at"`
	StaleAfter time.Time          `json:"stale_after"`
}

// LeaderboardCache is a read-through cache of per-group leaderboards.
type LeaderboardCache interface {
	Invalidator
	Get(ctx context.Context, groupID int64) (*LeaderboardSnapshot, error)
}

type LeaderboardOptions struct {
	Size int
	// StalenessBound caps how long a snapshot may be served if an
	// invalidation was lost.
	StalenessBound time.Duration
	// RebuildTimeout bounds a shared rebuild, which outlives the caller
	// that started it.
	RebuildTimeout time.Duration
}

func (o LeaderboardOptions) withDefaults() LeaderboardOptions {
	if o.Size <= 0 {
		o.Size = 10
	}
	if o.StalenessBound < 0 {
		o.StalenessBound = 0
	}
	if o.RebuildTimeout <= 0 {
		o.RebuildTimeout = 10 * time.Second
	}
	return o
}

// leaderboardCache keeps one snapshot and one generation counter per group in
// the state store. Invalidate bumps the generation; Get only serves a snapshot
// built at the current generation, so a rebuild that raced an invalidation is
// never served afterwards.
type leaderboardCache struct {
	counters CounterReader
	state    repository.StateStore
	flight   singleflight.Group
	opts     LeaderboardOptions
	logger   *zap.Logger
	now      func() time.Time
}

func NewLeaderboardCache(counters CounterReader, state repository.StateStore, opts LeaderboardOptions, logger *zap.Logger) LeaderboardCache {
	return &leaderboardCache{
		counters: counters,
		state:    state,
		opts:     opts.withDefaults(),
		logger:   logger.Named("leaderboard"),
		now:      time.Now,
	}
}

func snapshotKey(groupID int64) string {
	return fmt.Sprintf("leaderboard:%d:snapshot", groupID)
}

func generationKey(groupID int64) string {
	return fmt.Sprintf("leaderboard:%d:gen", groupID)
}

func (c *leaderboardCache) Invalidate(ctx context.Context, groupID int64) error {
	if _, err := c.state.Incr(ctx, generationKey(groupID)); err != nil {
		return fmt.Errorf("invalidate leaderboard %d: %w", groupID, err)
	}
	return nil
}

func (c *leaderboardCache) Get(ctx context.Context, groupID int64) (*LeaderboardSnapshot, error) {
	gen, err := c.generation(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard generation %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	if snap := c.cached(ctx, groupID, gen); snap != nil {
		return snap, nil
	}

	key := strconv.FormatInt(groupID, 10) + ":" + strconv.FormatInt(gen, 10)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		// Detached so one cancelled reader does not fail the others waiting on it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RebuildTimeout)
		defer cancel()
		return c.rebuild(rctx, groupID, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*LeaderboardSnapshot), nil
	}
}

func (c *leaderboardCache) generation(ctx context.Context, groupID int64) (int64, error) {
	raw, err := c.state.Get(ctx, generationKey(groupID))
	if err != nil || raw == nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// cached returns the stored snapshot if it belongs to generation gen.
func (c *leaderboardCache) cached(ctx context.Context, groupID, gen int64) *LeaderboardSnapshot {
	raw, err := c.state.Get(ctx, snapshotKey(groupID))
	if err != nil {
		c.logger.Warn("reading cached leaderboard failed", zap.Int64("group_id", groupID), zap.Error(err))
		return nil
	}
	if raw == nil {
		return nil
	}
	var snap LeaderboardSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("discarding malformed leaderboard snapshot", zap.Int64("group_id", groupID), zap.Error(err))
		return nil
	}
	if snap.Generation != gen {
		return nil
	}
	return &snap
}

func (c *leaderboardCache) rebuild(ctx context.Context, groupID, gen int64) (*LeaderboardSnapshot, error) {
	counters, err := c.counters.GetAll(ctx, groupID)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(counters))
	for userID, counter := range counters {
		if counter.InviteCount <= 0 {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			UserID:      userID,
			DisplayName: counter.DisplayName,
			Count:       counter.InviteCount,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > c.opts.Size {
		entries = entries[:c.opts.Size]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	now := c.now()
	snap := &LeaderboardSnapshot{
		GroupID:    groupID,
		Entries:    entries,
		Generation: gen,
		BuiltAt:    now,
	}
	if c.opts.StalenessBound > 0 {
		snap.StaleAfter = now.Add(c.opts.StalenessBound)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal leaderboard %d: %w", groupID, err)
	}
	if err := c.state.Set(ctx, snapshotKey(groupID), raw, c.opts.StalenessBound); err != nil {
		c.logger.Warn("storing leaderboard snapshot failed", zap.Int64("group_id", groupID), zap.Error(err))
	}
	return snap, nil
}
