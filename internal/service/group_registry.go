package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inviterank/tracker/internal/model"
	"inviterank/tracker/internal/repository"
)

type GroupRegistry interface {
	Register(ctx context.Context, groupID int64, title string) (*model.Group, error)
	// Lookup reports found=false for an unknown group; that is not an error.
	Lookup(ctx context.Context, groupID int64) (*model.Group, bool, error)
	// Ensure registers an unknown group, or renames a known one when a
	// different non-empty title is seen.
	Ensure(ctx context.Context, groupID int64, title string) (*model.Group, error)
	SetThreshold(ctx context.Context, groupID int64, threshold int) (*model.Group, error)
	List(ctx context.Context) ([]model.Group, error)
	TouchActivity(ctx context.Context, groupID int64, at time.Time) error
}

type groupRegistry struct {
	groups repository.GroupRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewGroupRegistry(groups repository.GroupRepository, logger *zap.Logger) GroupRegistry {
	return &groupRegistry{
		groups: groups,
		logger: logger.Named("registry"),
		now:    time.Now,
	}
}

func (r *groupRegistry) Register(ctx context.Context, groupID int64, title string) (*model.Group, error) {
	now := r.now()
	group := &model.Group{ID: groupID, Title: title, CreatedAt: now, UpdatedAt: now}
	if err := r.groups.Upsert(ctx, group); err != nil {
		return nil, fmt.Errorf("register group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	stored, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("reload group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	return stored, nil
}

func (r *groupRegistry) Lookup(ctx context.Context, groupID int64) (*model.Group, bool, error) {
	group, err := r.groups.GetByID(ctx, groupID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("lookup group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	return group, true, nil
}

func (r *groupRegistry) Ensure(ctx context.Context, groupID int64, title string) (*model.Group, error) {
	group, found, err := r.Lookup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if found && (title == "" || title == group.Title) {
		return group, nil
	}
	if !found {
		r.logger.Info("registering group on first join", zap.Int64("group_id", groupID))
	}
	return r.Register(ctx, groupID, title)
}

func (r *groupRegistry) SetThreshold(ctx context.Context, groupID int64, threshold int) (*model.Group, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}
	group, err := r.groups.SaveThreshold(ctx, groupID, threshold, r.now())
	if err != nil {
		return nil, fmt.Errorf("set threshold for group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	r.logger.Info("invite threshold updated",
		zap.Int64("group_id", groupID),
		zap.Int("threshold", threshold),
		zap.Bool("gating_enabled", group.GatingEnabled),
	)
	return group, nil
}

func (r *groupRegistry) List(ctx context.Context) ([]model.Group, error) {
	groups, err := r.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w: %w", ErrStoreUnavailable, err)
	}
	return groups, nil
}

func (r *groupRegistry) TouchActivity(ctx context.Context, groupID int64, at time.Time) error {
	err := r.groups.TouchActivity(ctx, groupID, at)
	if errors.Is(err, repository.ErrNotFound) {
		if _, err := r.Register(ctx, groupID, ""); err != nil {
			return err
		}
		err = r.groups.TouchActivity(ctx, groupID, at)
	}
	if err != nil {
		return fmt.Errorf("touch group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	return nil
}
