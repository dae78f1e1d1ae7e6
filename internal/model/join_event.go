package model

import (
	"time"

	"github.com/google/uuid"
)

// JoinEvent is one row of the append-only join log. InviterID is nil for link
// and self joins. Credited flips to true exactly once, in the same transaction
// that increments the inviter's counter.
type JoinEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID    int64     `gorm:"not null;uniqueIndex:ux_join_group_token,priority:1;index:idx_join_group_time,priority:1" json:"group_id"`
	DedupToken string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_join_group_token,priority:2" json:"dedup_token"`
	UserID     int64     `gorm:"not null" json:"user_id"`
	InviterID  *int64    `json:"inviter_id,omitempty"`
	JoinedAt   time.Time `gorm:"not null;index:idx_join_group_time,priority:2" json:"joined_at"`
	Credited   bool      `gorm:"not null;default:false" json:"credited"`
	CreatedAt  time.Time `json:"created_at"`
}

func (JoinEvent) TableName() string { return "join_events" }

// Invited reports whether the join has an inviter to credit.
func (e *JoinEvent) Invited() bool {
	return e.InviterID != nil
}
