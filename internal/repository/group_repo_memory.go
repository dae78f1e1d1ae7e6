package repository

import (
	"context"
	"sync"
	"time"

	"inviterank/tracker/internal/model"
)

type memoryGroupRepository struct {
	mu     sync.RWMutex
	groups map[int64]model.Group
}

func NewMemoryGroupRepository() GroupRepository {
	return &memoryGroupRepository{groups: make(map[int64]model.Group)}
}

func (r *memoryGroupRepository) Upsert(_ context.Context, group *model.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if group.UpdatedAt.IsZero() {
		group.UpdatedAt = now
	}
	if existing, ok := r.groups[group.ID]; ok {
		existing.Title = group.Title
		existing.UpdatedAt = group.UpdatedAt
		r.groups[group.ID] = existing
		*group = existing
		return nil
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	r.groups[group.ID] = *group
	return nil
}

func (r *memoryGroupRepository) GetByID(_ context.Context, id int64) (*model.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group, ok := r.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &group, nil
}

func (r *memoryGroupRepository) SaveThreshold(_ context.Context, id int64, threshold int, at time.Time) (*model.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[id]
	if !ok {
		group = model.Group{ID: id, CreatedAt: at}
	}
	group.InviteThreshold = threshold
	group.GatingEnabled = threshold > 0
	group.UpdatedAt = at
	r.groups[id] = group
	return &group, nil
}

func (r *memoryGroupRepository) TouchActivity(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[id]
	if !ok {
		return ErrNotFound
	}
	group.LastActivityAt = &at
	group.UpdatedAt = at
	r.groups[id] = group
	return nil
}

func (r *memoryGroupRepository) List(_ context.Context) ([]model.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]model.Group, 0, len(r.groups))
	for _, group := range r.groups {
		groups = append(groups, group)
	}
	return groups, nil
}
