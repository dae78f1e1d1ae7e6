package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"inviterank/tracker/internal/notify"
)

// JoinNotification is one member entering a group, as reported by the
// transport. A message that adds several members yields one notification per
// member, each with its own dedup token.
type JoinNotification struct {
	GroupID       int64
	GroupTitle    string
	JoiningUserID int64
	JoiningIsBot  bool
	// ActorUserID is the user who performed the add; 0 when unknown.
	ActorUserID int64
	ActorName   *string
	DedupToken  string
	JoinedAt    time.Time
}

// MessageNotification is a message posted in a group, checked against the gate.
type MessageNotification struct {
	GroupID   int64
	UserID    int64
	MessageID int64
	IsAdmin   bool
}

type JoinOutcome struct {
	Attribution Attribution
	// Credit is set for invited joins.
	Credit *IncrementResult
	// FirstDelivery is false when the event had already been processed.
	FirstDelivery bool
}

type MessageVerdict struct {
	Verdict
	// Degraded is set when the verdict was not computed from the store and the
	// message was let through.
	Degraded bool `json:"degraded"`
	// NoticeTTL bounds how long a block explanation stays visible.
	NoticeTTL time.Duration `json:"notice_ttl,omitempty"`
}

// AdminChecker asks the transport whether a user administers a group.
type AdminChecker interface {
	IsAdministrator(ctx context.Context, groupID, userID int64) (bool, error)
}

type Engine interface {
	HandleJoin(ctx context.Context, n JoinNotification) (*JoinOutcome, error)
	// HandleMessage never fails: when the store cannot be read the message is
	// allowed and the verdict is marked degraded.
	HandleMessage(ctx context.Context, n MessageNotification) *MessageVerdict
	Leaderboard(ctx context.Context, groupID int64) (*LeaderboardSnapshot, error)
	Stats(ctx context.Context, groupID int64) (*GroupStats, error)
	Count(ctx context.Context, groupID, userID int64) (int64, error)
}

type EngineDeps struct {
	Registry    GroupRegistry
	Counters    CounterStore
	Gate        AccessGate
	Leaderboard LeaderboardCache
	Stats       StatsAggregator
	Notifier    notify.Notifier
	// Admins is optional.
	Admins AdminChecker
}

type EngineOptions struct {
	BotUserID      int64
	BlockNoticeTTL time.Duration
}

type engine struct {
	deps   EngineDeps
	opts   EngineOptions
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(deps EngineDeps, opts EngineOptions, logger *zap.Logger) Engine {
	return &engine{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("engine"),
		now:    time.Now,
	}
}

func (e *engine) HandleJoin(ctx context.Context, n JoinNotification) (*JoinOutcome, error) {
	att := Resolve(e.opts.BotUserID, n.ActorUserID, n.JoiningUserID, n.JoiningIsBot)
	out := &JoinOutcome{Attribution: att}
	if att.Kind == AttributionDiscarded {
		e.logger.Debug("bot join discarded",
			zap.Int64("group_id", n.GroupID),
			zap.Int64("user_id", n.JoiningUserID),
		)
		return out, nil
	}

	if err := validateToken(n.DedupToken); err != nil {
		return nil, err
	}
	if _, err := e.deps.Registry.Ensure(ctx, n.GroupID, n.GroupTitle); err != nil {
		return nil, err
	}

	switch att.Kind {
	case AttributionSelfJoin:
		fresh, err := e.deps.Counters.RecordSelfJoin(ctx, SelfJoinRequest{
			GroupID:    n.GroupID,
			UserID:     n.JoiningUserID,
			DedupToken: n.DedupToken,
			JoinedAt:   n.JoinedAt,
		})
		if err != nil {
			return nil, err
		}
		out.FirstDelivery = fresh
		if fresh {
			if err := e.deps.Notifier.OnWelcome(ctx, notify.WelcomeNotice{GroupID: n.GroupID, UserID: n.JoiningUserID}); err != nil {
				e.logger.Warn("welcome notice failed", zap.Int64("group_id", n.GroupID), zap.Error(err))
			}
		}

	case AttributionInvited:
		res, err := e.deps.Counters.Increment(ctx, IncrementRequest{
			GroupID:      n.GroupID,
			InviterID:    att.InviterID,
			JoinedUserID: n.JoiningUserID,
			DedupToken:   n.DedupToken,
			DisplayName:  n.ActorName,
			JoinedAt:     n.JoinedAt,
		})
		if err != nil {
			return nil, err
		}
		out.Credit = res
		out.FirstDelivery = res.Outcome == OutcomeCredited
		if res.Outcome == OutcomeCredited {
			notice := notify.CreditNotice{
				GroupID:      n.GroupID,
				InviterID:    att.InviterID,
				InviterName:  n.ActorName,
				JoinedUserID: n.JoiningUserID,
				Count:        res.Count,
			}
			if err := e.deps.Notifier.OnCredited(ctx, notice); err != nil {
				e.logger.Warn("credit notice failed", zap.Int64("group_id", n.GroupID), zap.Error(err))
			}
		}
	}
	return out, nil
}

func (e *engine) HandleMessage(ctx context.Context, n MessageNotification) *MessageVerdict {
	fields := []zap.Field{zap.Int64("group_id", n.GroupID), zap.Int64("user_id", n.UserID)}

	v, err := e.deps.Gate.Evaluate(ctx, n.GroupID, n.UserID, n.IsAdmin)
	if err != nil {
		e.logger.Warn("gate evaluation failed, allowing message", append(fields, zap.Error(err))...)
		return degradedVerdict()
	}

	if !v.Allowed && e.deps.Admins != nil {
		isAdmin, err := e.deps.Admins.IsAdministrator(ctx, n.GroupID, n.UserID)
		if err != nil {
			e.logger.Warn("admin lookup failed, allowing message", append(fields, zap.Error(err))...)
			return degradedVerdict()
		}
		if isAdmin {
			v = Verdict{Allowed: true, Reason: ReasonAdministrator}
		}
	}

	if v.Allowed {
		return &MessageVerdict{Verdict: v}
	}

	notice := notify.BlockNotice{
		GroupID:   n.GroupID,
		UserID:    n.UserID,
		MessageID: n.MessageID,
		Remaining: v.Remaining,
		Threshold: v.Threshold,
		NoticeTTL: e.opts.BlockNoticeTTL,
	}
	if err := e.deps.Notifier.OnBlocked(ctx, notice); err != nil {
		e.logger.Warn("block notice failed", append(fields, zap.Error(err))...)
	}
	return &MessageVerdict{Verdict: v, NoticeTTL: e.opts.BlockNoticeTTL}
}

func degradedVerdict() *MessageVerdict {
	return &MessageVerdict{
		Verdict:  Verdict{Allowed: true, Reason: ReasonStoreUnavailable},
		Degraded: true,
	}
}

func (e *engine) Leaderboard(ctx context.Context, groupID int64) (*LeaderboardSnapshot, error) {
	return e.deps.Leaderboard.Get(ctx, groupID)
}

func (e *engine) Stats(ctx context.Context, groupID int64) (*GroupStats, error) {
	return e.deps.Stats.Aggregate(ctx, groupID, e.now())
}

func (e *engine) Count(ctx context.Context, groupID, userID int64) (int64, error) {
	return e.deps.Counters.Get(ctx, groupID, userID)
}
