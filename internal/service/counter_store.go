package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inviterank/tracker/internal/model"
	"inviterank/tracker/internal/repository"
)

// MaxDedupTokenLen is the longest dedup token the store accepts.
const MaxDedupTokenLen = 128

// CreditOutcome tells a genuine credit apart from a redelivered event.
type CreditOutcome int

const (
	OutcomeCredited CreditOutcome = iota + 1
	OutcomeDuplicate
)

func (o CreditOutcome) String() string {
	switch o {
	case OutcomeCredited:
		return "credited"
	case OutcomeDuplicate:
		return "duplicate_ignored"
	default:
		return "unknown"
	}
}

type IncrementRequest struct {
	GroupID      int64
	InviterID    int64
	JoinedUserID int64
	DedupToken   string
	// DisplayName refreshes the inviter's cached name; nil keeps the old one.
	DisplayName *string
	JoinedAt    time.Time
}

type IncrementResult struct {
	Count   int64
	Outcome CreditOutcome
	// Recovered is set when the join had been logged by an earlier delivery
	// that never finished crediting it.
	Recovered bool
}

type SelfJoinRequest struct {
	GroupID    int64
	UserID     int64
	DedupToken string
	JoinedAt   time.Time
}

// CounterReader is the read side of the counter store.
type CounterReader interface {
	// Get returns 0 for a user with no counter.
	Get(ctx context.Context, groupID, userID int64) (int64, error)
	// GetAll maps user id to counter for every inviter in the group.
	GetAll(ctx context.Context, groupID int64) (map[int64]model.InviteCounter, error)
}

// Invalidator drops cached views derived from a group's counters.
type Invalidator interface {
	Invalidate(ctx context.Context, groupID int64) error
}

type CounterStore interface {
	CounterReader
	// Increment credits req.InviterID once per distinct (group, dedup token),
	// no matter how often the same event is delivered.
	Increment(ctx context.Context, req IncrementRequest) (*IncrementResult, error)
	// RecordSelfJoin logs a join that credits nobody. It reports whether the
	// event was new.
	RecordSelfJoin(ctx context.Context, req SelfJoinRequest) (bool, error)
	// Reconcile credits invited joins that were logged but never credited,
	// returning how many it credited.
	Reconcile(ctx context.Context) (int, error)
}

type CounterOptions struct {
	MaxRetries     int
	RetryBackoff   time.Duration
	ReconcileGrace time.Duration
	ReconcileBatch int
}

func (o CounterOptions) withDefaults() CounterOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.ReconcileBatch <= 0 {
		o.ReconcileBatch = 100
	}
	if o.ReconcileGrace < 0 {
		o.ReconcileGrace = 0
	}
	return o
}

type counterReader struct {
	repo repository.InviteRepository
}

func NewCounterReader(repo repository.InviteRepository) CounterReader {
	return &counterReader{repo: repo}
}

func (r *counterReader) Get(ctx context.Context, groupID, userID int64) (int64, error) {
	counter, err := r.repo.GetCounter(ctx, groupID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("get counter %d/%d: %w: %w", groupID, userID, ErrStoreUnavailable, err)
	}
	return counter.InviteCount, nil
}

func (r *counterReader) GetAll(ctx context.Context, groupID int64) (map[int64]model.InviteCounter, error) {
	counters := make(map[int64]model.InviteCounter)
	err := r.repo.ScanCounters(ctx, groupID, func(c *model.InviteCounter) error {
		counters[c.UserID] = *c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan counters for group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	return counters, nil
}

type counterStore struct {
	*counterReader
	repo        repository.InviteRepository
	registry    GroupRegistry
	invalidator Invalidator
	opts        CounterOptions
	logger      *zap.Logger
	now         func() time.Time
}

func NewCounterStore(
	repo repository.InviteRepository,
	registry GroupRegistry,
	invalidator Invalidator,
	opts CounterOptions,
	logger *zap.Logger,
) CounterStore {
	return &counterStore{
		counterReader: &counterReader{repo: repo},
		repo:          repo,
		registry:      registry,
		invalidator:   invalidator,
		opts:          opts.withDefaults(),
		logger:        logger.Named("counter"),
		now:           time.Now,
	}
}

func validateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: dedup token is required", ErrInvalidEvent)
	}
	if len(token) > MaxDedupTokenLen {
		return fmt.Errorf("%w: dedup token longer than %d bytes", ErrInvalidEvent, MaxDedupTokenLen)
	}
	return nil
}

func (s *counterStore) Increment(ctx context.Context, req IncrementRequest) (*IncrementResult, error) {
	if err := validateToken(req.DedupToken); err != nil {
		return nil, err
	}
	if req.InviterID == 0 {
		return nil, fmt.Errorf("%w: inviter is required", ErrInvalidEvent)
	}

	now := s.now()
	joinedAt := req.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}
	inviterID := req.InviterID
	event := &model.JoinEvent{
		ID:         uuid.New(),
		GroupID:    req.GroupID,
		DedupToken: req.DedupToken,
		UserID:     req.JoinedUserID,
		InviterID:  &inviterID,
		JoinedAt:   joinedAt,
		CreatedAt:  now,
	}
	inserted, err := s.repo.AppendJoin(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("append join %q: %w: %w", req.DedupToken, ErrStoreUnavailable, err)
	}

	fields := []zap.Field{
		zap.Int64("group_id", req.GroupID),
		zap.Int64("inviter_id", req.InviterID),
		zap.String("dedup_token", req.DedupToken),
	}

	res, err := s.credit(ctx, repository.CreditRequest{
		GroupID:     req.GroupID,
		DedupToken:  req.DedupToken,
		InviterID:   req.InviterID,
		DisplayName: req.DisplayName,
		At:          now,
	})
	if err != nil {
		s.logger.Error("join logged but not credited, left for reconciliation", append(fields, zap.Error(err))...)
		return nil, err
	}

	if !res.Applied {
		s.logger.Info("duplicate join event ignored", append(fields, zap.Int64("count", res.Count))...)
		return &IncrementResult{Count: res.Count, Outcome: OutcomeDuplicate}, nil
	}
	if !inserted {
		s.logger.Info("credited join left over from an earlier delivery", fields...)
	}

	s.afterCommit(ctx, req.GroupID, now)
	return &IncrementResult{Count: res.Count, Outcome: OutcomeCredited, Recovered: !inserted}, nil
}

// credit runs the credit transaction, retrying conflicts and transient
// failures with exponential backoff.
func (s *counterStore) credit(ctx context.Context, req repository.CreditRequest) (*repository.CreditResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		res, err := s.repo.CreditJoin(ctx, req)
		if err == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("credit join %q: %w", req.DedupToken, ctxErr)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("credit join %q: join not logged: %w: %w", req.DedupToken, ErrStoreUnavailable, err)
		}

		lastErr = err
		s.logger.Warn("credit attempt failed",
			zap.Int("attempt", attempt),
			zap.String("dedup_token", req.DedupToken),
			zap.Error(err),
		)
		if attempt < s.opts.MaxRetries {
			if err := s.sleep(ctx, s.opts.RetryBackoff<<(attempt-1)); err != nil {
				return nil, fmt.Errorf("credit join %q: %w", req.DedupToken, err)
			}
		}
	}

	if errors.Is(lastErr, repository.ErrConflict) {
		return nil, fmt.Errorf("credit join %q: %w: %w", req.DedupToken, ErrCounterUpdateFailed, lastErr)
	}
	return nil, fmt.Errorf("credit join %q: %w: %w", req.DedupToken, ErrStoreUnavailable, lastErr)
}

func (s *counterStore) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// afterCommit runs the bookkeeping that follows an applied credit. Failures
// are logged; the credit itself is already durable.
func (s *counterStore) afterCommit(ctx context.Context, groupID int64, at time.Time) {
	if err := s.invalidator.Invalidate(ctx, groupID); err != nil {
		s.logger.Warn("leaderboard invalidation failed", zap.Int64("group_id", groupID), zap.Error(err))
	}
	if err := s.registry.TouchActivity(ctx, groupID, at); err != nil {
		s.logger.Warn("recording group activity failed", zap.Int64("group_id", groupID), zap.Error(err))
	}
}

func (s *counterStore) RecordSelfJoin(ctx context.Context, req SelfJoinRequest) (bool, error) {
	if err := validateToken(req.DedupToken); err != nil {
		return false, err
	}

	now := s.now()
	joinedAt := req.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}
	inserted, err := s.repo.AppendJoin(ctx, &model.JoinEvent{
		ID:         uuid.New(),
		GroupID:    req.GroupID,
		DedupToken: req.DedupToken,
		UserID:     req.UserID,
		JoinedAt:   joinedAt,
		CreatedAt:  now,
	})
	if err != nil {
		return false, fmt.Errorf("append self join %q: %w: %w", req.DedupToken, ErrStoreUnavailable, err)
	}
	if !inserted {
		s.logger.Info("duplicate self join ignored",
			zap.Int64("group_id", req.GroupID),
			zap.String("dedup_token", req.DedupToken),
		)
		return false, nil
	}
	if err := s.registry.TouchActivity(ctx, req.GroupID, now); err != nil {
		s.logger.Warn("recording group activity failed", zap.Int64("group_id", req.GroupID), zap.Error(err))
	}
	return true, nil
}

func (s *counterStore) Reconcile(ctx context.Context) (int, error) {
	now := s.now()
	events, err := s.repo.ListUncredited(ctx, now.Add(-s.opts.ReconcileGrace), s.opts.ReconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list uncredited joins: %w: %w", ErrStoreUnavailable, err)
	}

	credited := 0
	groups := make(map[int64]struct{})
	for _, event := range events {
		if event.InviterID == nil {
			continue
		}
		res, err := s.credit(ctx, repository.CreditRequest{
			GroupID:    event.GroupID,
			DedupToken: event.DedupToken,
			InviterID:  *event.InviterID,
			At:         now,
		})
		if err != nil {
			if ctx.Err() != nil {
				return credited, err
			}
			s.logger.Warn("reconciling join failed",
				zap.Int64("group_id", event.GroupID),
				zap.String("dedup_token", event.DedupToken),
				zap.Error(err),
			)
			continue
		}
		if res.Applied {
			credited++
			groups[event.GroupID] = struct{}{}
		}
	}

	for groupID := range groups {
		s.afterCommit(ctx, groupID, now)
	}
	if credited > 0 {
		s.logger.Info("reconciled uncredited joins", zap.Int("credited", credited), zap.Int("scanned", len(events)))
	}
	return credited, nil
}
