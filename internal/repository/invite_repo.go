package repository

import (
	"context"
	"time"

	"inviterank/tracker/internal/model"
)

// CreditRequest identifies a logged join whose inviter should be credited.
type CreditRequest struct {
	GroupID     int64
	DedupToken  string
	InviterID   int64
	DisplayName *string
	At          time.Time
}

// CreditResult reports the inviter's count after CreditJoin. Applied is false
// when the join had already been credited and nothing changed.
type CreditResult struct {
	Count   int64
	Applied bool
}

// InviteRepository is the durable store for the join log and invite counters.
type InviteRepository interface {
	// AppendJoin inserts the event unless a row with the same
	// (group_id, dedup_token) exists. It reports whether a row was inserted.
	AppendJoin(ctx context.Context, event *model.JoinEvent) (bool, error)
	// CreditJoin marks the join credited and increments the inviter's counter
	// in one transaction. It returns ErrNotFound if the join was never logged
	// and ErrConflict if the transaction lost a race and should be retried.
	CreditJoin(ctx context.Context, req CreditRequest) (*CreditResult, error)
	GetCounter(ctx context.Context, groupID, userID int64) (*model.InviteCounter, error)
	ScanCounters(ctx context.Context, groupID int64, fn func(*model.InviteCounter) error) error
	ScanJoins(ctx context.Context, groupID int64, fn func(*model.JoinEvent) error) error
	// ListUncredited returns invited joins created before the cutoff that
	// were never credited, oldest first.
	ListUncredited(ctx context.Context, createdBefore time.Time, limit int) ([]model.JoinEvent, error)
}
