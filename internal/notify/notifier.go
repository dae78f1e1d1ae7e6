// Package notify carries engine outcomes to the chat transport, which renders
// them as user-facing messages.
package notify

import (
	"context"
	"time"
)

// Kind tags a notice on the wire.
type Kind string

const (
	KindCredited Kind = "credited"
	KindBlocked  Kind = "blocked"
	KindWelcome  Kind = "welcome"
)

// CreditNotice is sent after an inviter was credited for a new member.
type CreditNotice struct {
	GroupID      int64   `json:"group_id"`
	InviterID    int64   `json:"inviter_id"`
	InviterName  *string `json:"inviter_name,omitempty"`
	JoinedUserID int64   `json:"joined_user_id"`
	Count        int64   `json:"count"`
}

// BlockNotice asks the transport to delete MessageID and show a notice for
// at most NoticeTTL.
type BlockNotice struct {
	GroupID   int64         `json:"group_id"`
	UserID    int64         `json:"user_id"`
	MessageID int64         `json:"message_id"`
	Remaining int64         `json:"remaining"`
	Threshold int           `json:"threshold"`
	NoticeTTL time.Duration `json:"notice_ttl"`
}

// WelcomeNotice is sent when a user joined by link or added themselves.
type WelcomeNotice struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
}

type Notifier interface {
	OnCredited(ctx context.Context, n CreditNotice) error
	OnBlocked(ctx context.Context, n BlockNotice) error
	OnWelcome(ctx context.Context, n WelcomeNotice) error
}
