package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inviterank/tracker/internal/model"
)

type pgInviteRepository struct {
	db *gorm.DB
}

func NewPGInviteRepository(db *gorm.DB) InviteRepository {
	return &pgInviteRepository{db: db}
}

func (r *pgInviteRepository) AppendJoin(ctx context.Context, event *model.JoinEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "dedup_token"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *pgInviteRepository) CreditJoin(ctx context.Context, req CreditRequest) (*CreditResult, error) {
	var result CreditResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flip := tx.Model(&model.JoinEvent{}).
			Where("group_id = ? AND dedup_token = ? AND inviter_id = ? AND credited = ?",
				req.GroupID, req.DedupToken, req.InviterID, false).
			UpdateColumn("credited", true)
		if flip.Error != nil {
			return flip.Error
		}

		if flip.RowsAffected == 0 {
			var event model.JoinEvent
			if err := tx.Select("id").
				Where("group_id = ? AND dedup_token = ?", req.GroupID, req.DedupToken).
				First(&event).Error; err != nil {
				return err
			}
			count, err := currentCount(tx, req.GroupID, req.InviterID)
			if err != nil {
				return err
			}
			result = CreditResult{Count: count}
			return nil
		}

		var counter model.InviteCounter
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND user_id = ?", req.GroupID, req.InviterID).
			First(&counter).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// A concurrent first credit for the same inviter surfaces here as
			// a unique violation, which the caller retries.
			counter = model.InviteCounter{
				GroupID:     req.GroupID,
				UserID:      req.InviterID,
				InviteCount: 1,
				DisplayName: req.DisplayName,
				UpdatedAt:   req.At,
			}
			if err := tx.Create(&counter).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := map[string]interface{}{
				"invite_count": counter.InviteCount + 1,
				"updated_at":   req.At,
			}
			if req.DisplayName != nil {
				updates["display_name"] = *req.DisplayName
			}
			if err := tx.Model(&model.InviteCounter{}).
				Where("group_id = ? AND user_id = ?", req.GroupID, req.InviterID).
				UpdateColumns(updates).Error; err != nil {
				return err
			}
			counter.InviteCount++
		}

		result = CreditResult{Count: counter.InviteCount, Applied: true}
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &result, nil
}

func currentCount(tx *gorm.DB, groupID, userID int64) (int64, error) {
	var counter model.InviteCounter
	err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.InviteCount, nil
}

func (r *pgInviteRepository) GetCounter(ctx context.Context, groupID, userID int64) (*model.InviteCounter, error) {
	var counter model.InviteCounter
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&counter).Error; err != nil {
		return nil, translateError(err)
	}
	return &counter, nil
}

func (r *pgInviteRepository) ScanCounters(ctx context.Context, groupID int64, fn func(*model.InviteCounter) error) error {
	db := r.db.WithContext(ctx)
	rows, err := db.Model(&model.InviteCounter{}).Where("group_id = ?", groupID).Rows()
	if err != nil {
		return translateError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var counter model.InviteCounter
		if err := db.ScanRows(rows, &counter); err != nil {
			return translateError(err)
		}
		if err := fn(&counter); err != nil {
			return err
		}
	}
	return translateError(rows.Err())
}

func (r *pgInviteRepository) ScanJoins(ctx context.Context, groupID int64, fn func(*model.JoinEvent) error) error {
	db := r.db.WithContext(ctx)
	rows, err := db.Model(&model.JoinEvent{}).Where("group_id = ?", groupID).Rows()
	if err != nil {
		return translateError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var event model.JoinEvent
		if err := db.ScanRows(rows, &event); err != nil {
			return translateError(err)
		}
		if err := fn(&event); err != nil {
			return err
		}
	}
	return translateError(rows.Err())
}

func (r *pgInviteRepository) ListUncredited(ctx context.Context, createdBefore time.Time, limit int) ([]model.JoinEvent, error) {
	var events []model.JoinEvent
	if err := r.db.WithContext(ctx).
		Where("credited = ? AND inviter_id IS NOT NULL AND created_at < ?", false, createdBefore).
		Order("created_at").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, translateError(err)
	}
	return events, nil
}
