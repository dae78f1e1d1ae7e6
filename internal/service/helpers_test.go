package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"inviterank/tracker/internal/model"
	"inviterank/tracker/internal/notify"
	"inviterank/tracker/internal/repository"
)

// fixture wires every component over the in-memory repositories.
type fixture struct {
	groups   repository.GroupRepository
	invites  repository.InviteRepository
	state    repository.StateStore
	registry GroupRegistry
	reader   CounterReader
	cache    LeaderboardCache
	counters CounterStore
	gate     AccessGate
	stats    StatsAggregator
	notifier *recordingNotifier
	engine   Engine
	logger   *zap.Logger
}

type fixtureOption func(*fixture)

// withInviteRepository swaps the invite repository before services are built.
func withInviteRepository(repo repository.InviteRepository) fixtureOption {
	return func(f *fixture) { f.invites = repo }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		groups:   repository.NewMemoryGroupRepository(),
		invites:  repository.NewMemoryInviteRepository(),
		state:    repository.NewMemoryStateStore(),
		notifier: &recordingNotifier{},
		logger:   zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.registry = NewGroupRegistry(f.groups, f.logger)
	f.reader = NewCounterReader(f.invites)
	f.cache = NewLeaderboardCache(f.reader, f.state, LeaderboardOptions{Size: 10, StalenessBound: time.Minute}, f.logger)
	f.counters = NewCounterStore(f.invites, f.registry, f.cache, CounterOptions{
		MaxRetries:     5,
		ReconcileGrace: 30 * time.Second,
		ReconcileBatch: 100,
	}, f.logger)
	f.gate = NewAccessGate(f.registry, f.reader)
	f.stats = NewStatsAggregator(f.invites, f.reader, 7*24*time.Hour)
	f.engine = NewEngine(EngineDeps{
		Registry:    f.registry,
		Counters:    f.counters,
		Gate:        f.gate,
		Leaderboard: f.cache,
		Stats:       f.stats,
		Notifier:    f.notifier,
	}, EngineOptions{BotUserID: 999, BlockNoticeTTL: 15 * time.Second}, f.logger)
	return f
}

// setNow pins the clock of the counter store.
func (f *fixture) setNow(now time.Time) {
	f.counters.(*counterStore).now = func() time.Time { return now }
}

func (f *fixture) invite(t *testing.T, groupID, inviterID, joinedID int64, token string) *IncrementResult {
	t.Helper()
	res, err := f.counters.Increment(context.Background(), IncrementRequest{
		GroupID:      groupID,
		InviterID:    inviterID,
		JoinedUserID: joinedID,
		DedupToken:   token,
	})
	if err != nil {
		t.Fatalf("Increment(%s) failed: %v", token, err)
	}
	return res
}

type recordingNotifier struct {
	mu       sync.Mutex
	credited []notify.CreditNotice
	blocked  []notify.BlockNotice
	welcomed []notify.WelcomeNotice
}

func (n *recordingNotifier) OnCredited(_ context.Context, c notify.CreditNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.credited = append(n.credited, c)
	return nil
}

func (n *recordingNotifier) OnBlocked(_ context.Context, b notify.BlockNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocked = append(n.blocked, b)
	return nil
}

func (n *recordingNotifier) OnWelcome(_ context.Context, w notify.WelcomeNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, w)
	return nil
}

// flakyInviteRepository injects failures in front of a working repository.
type flakyInviteRepository struct {
	repository.InviteRepository

	mu sync.Mutex
	// creditErrs are returned by successive CreditJoin calls before the
	// wrapped repository is reached.
	creditErrs    []error
	creditErr     error
	creditCalls   int
	scanErr       error
	getCounterErr error
}

func (r *flakyInviteRepository) CreditJoin(ctx context.Context, req repository.CreditRequest) (*repository.CreditResult, error) {
	r.mu.Lock()
	r.creditCalls++
	var err error
	if len(r.creditErrs) > 0 {
		err, r.creditErrs = r.creditErrs[0], r.creditErrs[1:]
	} else {
		err = r.creditErr
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return r.InviteRepository.CreditJoin(ctx, req)
}

func (r *flakyInviteRepository) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creditCalls
}

func (r *flakyInviteRepository) setCreditErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creditErr = err
}

func (r *flakyInviteRepository) ScanCounters(ctx context.Context, groupID int64, fn func(*model.InviteCounter) error) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return r.InviteRepository.ScanCounters(ctx, groupID, fn)
}

func (r *flakyInviteRepository) GetCounter(ctx context.Context, groupID, userID int64) (*model.InviteCounter, error) {
	if r.getCounterErr != nil {
		return nil, r.getCounterErr
	}
	return r.InviteRepository.GetCounter(ctx, groupID, userID)
}

func conflictErr() error {
	return fmt.Errorf("%w: could not serialize access", repository.ErrConflict)
}

func strPtr(s string) *string { return &s }
