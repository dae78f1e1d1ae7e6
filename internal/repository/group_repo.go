package repository

import (
	"context"
	"time"

	"inviterank/tracker/internal/model"
)

type GroupRepository interface {
	// Upsert creates the group or, if it exists, updates its title and
	// updated_at. The threshold of an existing group is never touched.
	Upsert(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id int64) (*model.Group, error)
	// SaveThreshold creates or updates the group's threshold and gating flag.
	SaveThreshold(ctx context.Context, id int64, threshold int, at time.Time) (*model.Group, error)
	TouchActivity(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context) ([]model.Group, error)
}
