package model

import "time"

// Group is a chat the bot tracks invites for. ID is the chat platform's id and
// stays stable across renames.
type Group struct {
	ID              int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title           string     `gorm:"type:varchar(256);not null;default:''" json:"title"`
	InviteThreshold int        `gorm:"not null;default:0" json:"invite_threshold"`
	GatingEnabled   bool       `gorm:"not null;default:false" json:"gating_enabled"`
	LastActivityAt  *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Group) TableName() string { return "groups" }

// GatingActive reports whether members must reach the threshold before posting.
func (g *Group) GatingActive() bool {
	return g != nil && g.GatingEnabled && g.InviteThreshold > 0
}
