package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inviterank/tracker/internal/model"
)

type pgGroupRepository struct {
	db *gorm.DB
}

func NewPGGroupRepository(db *gorm.DB) GroupRepository {
	return &pgGroupRepository{db: db}
}

func (r *pgGroupRepository) Upsert(ctx context.Context, group *model.Group) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "updated_at"}),
	}).Create(group).Error
	return translateError(err)
}

func (r *pgGroupRepository) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	var group model.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &group, nil
}

func (r *pgGroupRepository) SaveThreshold(ctx context.Context, id int64, threshold int, at time.Time) (*model.Group, error) {
	group := &model.Group{
		ID:              id,
		InviteThreshold: threshold,
		GatingEnabled:   threshold > 0,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"invite_threshold", "gating_enabled", "updated_at"}),
	}).Create(group).Error
	if err != nil {
		return nil, translateError(err)
	}
	return r.GetByID(ctx, id)
}

func (r *pgGroupRepository) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"last_activity_at": at, "updated_at": at})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgGroupRepository) List(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := r.db.WithContext(ctx).Find(&groups).Error; err != nil {
		return nil, translateError(err)
	}
	return groups, nil
}
