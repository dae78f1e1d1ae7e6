package model

import "time"

// InviteCounter holds how many members a user has brought into a group.
// InviteCount never decreases.
type InviteCounter struct {
	GroupID     int64     `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	UserID      int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	InviteCount int64     `gorm:"not null;default:0" json:"invite_count"`
	DisplayName *string   `gorm:"type:varchar(256)" json:"display_name,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (InviteCounter) TableName() string { return "invite_counters" }
