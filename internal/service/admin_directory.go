package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inviterank/tracker/internal/repository"
)

// AdminDirectory answers IsAdministrator from the administrator lists the
// transport pushes whenever a group's admins change.
type AdminDirectory interface {
	AdminChecker
	// Replace overwrites the group's administrator list.
	Replace(ctx context.Context, groupID int64, userIDs []int64) error
}

type adminDirectory struct {
	state  repository.StateStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewAdminDirectory stores lists in state. A list not refreshed within ttl is
// forgotten; ttl 0 keeps lists until replaced.
func NewAdminDirectory(state repository.StateStore, ttl time.Duration, logger *zap.Logger) AdminDirectory {
	if ttl < 0 {
		ttl = 0
	}
	return &adminDirectory{
		state:  state,
		ttl:    ttl,
		logger: logger.Named("admins"),
	}
}

func adminsKey(groupID int64) string {
	return fmt.Sprintf("admins:%d", groupID)
}

func (d *adminDirectory) Replace(ctx context.Context, groupID int64, userIDs []int64) error {
	if userIDs == nil {
		userIDs = []int64{}
	}
	raw, err := json.Marshal(userIDs)
	if err != nil {
		return fmt.Errorf("marshal admins of group %d: %w", groupID, err)
	}
	if err := d.state.Set(ctx, adminsKey(groupID), raw, d.ttl); err != nil {
		return fmt.Errorf("store admins of group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	d.logger.Debug("administrators replaced", zap.Int64("group_id", groupID), zap.Int("count", len(userIDs)))
	return nil
}

// IsAdministrator reports false for a group whose list is unknown.
func (d *adminDirectory) IsAdministrator(ctx context.Context, groupID, userID int64) (bool, error) {
	raw, err := d.state.Get(ctx, adminsKey(groupID))
	if err != nil {
		return false, fmt.Errorf("read admins of group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}
	if raw == nil {
		return false, nil
	}
	var admins []int64
	if err := json.Unmarshal(raw, &admins); err != nil {
		d.logger.Warn("discarding malformed admin list", zap.Int64("group_id", groupID), zap.Error(err))
		return false, nil
	}
	for _, id := range admins {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}
