package notify

import (
	"context"

	"go.uber.org/zap"
)

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier writes notices to the log. Used when no transport consumes them.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger.Named("notify")}
}

func (n *logNotifier) OnCredited(_ context.Context, c CreditNotice) error {
	n.logger.Info("inviter credited",
		zap.Int64("group_id", c.GroupID),
		zap.Int64("inviter_id", c.InviterID),
		zap.Int64("joined_user_id", c.JoinedUserID),
		zap.Int64("count", c.Count),
	)
	return nil
}

func (n *logNotifier) OnBlocked(_ context.Context, b BlockNotice) error {
	n.logger.Info("message blocked",
		zap.Int64("group_id", b.GroupID),
		zap.Int64("user_id", b.UserID),
		zap.Int64("message_id", b.MessageID),
		zap.Int64("remaining", b.Remaining),
		zap.Duration("notice_ttl", b.NoticeTTL),
	)
	return nil
}

func (n *logNotifier) OnWelcome(_ context.Context, w WelcomeNotice) error {
	n.logger.Info("member joined by link",
		zap.Int64("group_id", w.GroupID),
		zap.Int64("user_id", w.UserID),
	)
	return nil
}
