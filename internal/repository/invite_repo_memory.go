package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"inviterank/tracker/internal/model"
)

type joinKey struct {
	groupID int64
	token   string
}

type counterKey struct {
	groupID int64
	userID  int64
}

// memoryInviteRepository serialises every operation under one mutex, which
// gives the same guarantees as the PostgreSQL transactions for a single process.
type memoryInviteRepository struct {
	mu       sync.Mutex
	joins    map[joinKey]*model.JoinEvent
	order    []joinKey
	counters map[counterKey]*model.InviteCounter
}

func NewMemoryInviteRepository() InviteRepository {
	return &memoryInviteRepository{
		joins:    make(map[joinKey]*model.JoinEvent),
		counters: make(map[counterKey]*model.InviteCounter),
	}
}

func (r *memoryInviteRepository) AppendJoin(_ context.Context, event *model.JoinEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := joinKey{groupID: event.GroupID, token: event.DedupToken}
	if _, exists := r.joins[key]; exists {
		return false, nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	stored := *event
	stored.Credited = false
	if event.InviterID != nil {
		inviter := *event.InviterID
		stored.InviterID = &inviter
	}
	r.joins[key] = &stored
	r.order = append(r.order, key)
	return true, nil
}

func (r *memoryInviteRepository) CreditJoin(_ context.Context, req CreditRequest) (*CreditResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.joins[joinKey{groupID: req.GroupID, token: req.DedupToken}]
	if !ok {
		return nil, ErrNotFound
	}

	key := counterKey{groupID: req.GroupID, userID: req.InviterID}
	counter := r.counters[key]
	if event.Credited || event.InviterID == nil || *event.InviterID != req.InviterID {
		var count int64
		if counter != nil {
			count = counter.InviteCount
		}
		return &CreditResult{Count: count}, nil
	}

	if counter == nil {
		counter = &model.InviteCounter{GroupID: req.GroupID, UserID: req.InviterID}
		r.counters[key] = counter
	}
	counter.InviteCount++
	if req.DisplayName != nil {
		name := *req.DisplayName
		counter.DisplayName = &name
	}
	counter.UpdatedAt = req.At
	event.Credited = true

	return &CreditResult{Count: counter.InviteCount, Applied: true}, nil
}

func (r *memoryInviteRepository) GetCounter(_ context.Context, groupID, userID int64) (*model.InviteCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter, ok := r.counters[counterKey{groupID: groupID, userID: userID}]
	if !ok {
		return nil, ErrNotFound
	}
	c := *counter
	return &c, nil
}

func (r *memoryInviteRepository) ScanCounters(_ context.Context, groupID int64, fn func(*model.InviteCounter) error) error {
	r.mu.Lock()
	var counters []model.InviteCounter
	for key, counter := range r.counters {
		if key.groupID == groupID {
			counters = append(counters, *counter)
		}
	}
	r.mu.Unlock()

	for i := range counters {
		if err := fn(&counters[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryInviteRepository) ScanJoins(_ context.Context, groupID int64, fn func(*model.JoinEvent) error) error {
	r.mu.Lock()
	var events []model.JoinEvent
	for _, key := range r.order {
		if key.groupID == groupID {
			events = append(events, *r.joins[key])
		}
	}
	r.mu.Unlock()

	for i := range events {
		if err := fn(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryInviteRepository) ListUncredited(_ context.Context, createdBefore time.Time, limit int) ([]model.JoinEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []model.JoinEvent
	for _, key := range r.order {
		event := r.joins[key]
		if event.Credited || event.InviterID == nil || !event.CreatedAt.Before(createdBefore) {
			continue
		}
		events = append(events, *event)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
