package service

import (
	"context"
	"fmt"
	"time"

	"inviterank/tracker/internal/model"
	"inviterank/tracker/internal/repository"
)

type GroupStats struct {
	GroupID         int64         `json:"group_id"`
	TotalMembers    int64         `json:"total_members"`
	TotalInvited    int64         `json:"total_invited"`
	JoinedInWindow  int64         `json:"joined_in_window"`
	InvitedInWindow int64         `json:"invited_in_window"`
	ActiveInviters  int           `json:"active_inviters"`
	Window          time.Duration `json:"window"`
	ComputedAt      time.Time     `json:"computed_at"`
}

type StatsAggregator interface {
	Aggregate(ctx context.Context, groupID int64, now time.Time) (*GroupStats, error)
}

type statsAggregator struct {
	joins    repository.InviteRepository
	counters CounterReader
	window   time.Duration
}

// NewStatsAggregator computes group statistics from the join log. A window
// of zero or less defaults to seven days.
func NewStatsAggregator(joins repository.InviteRepository, counters CounterReader, window time.Duration) StatsAggregator {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &statsAggregator{joins: joins, counters: counters, window: window}
}

func (a *statsAggregator) Aggregate(ctx context.Context, groupID int64, now time.Time) (*GroupStats, error) {
	stats := &GroupStats{GroupID: groupID, Window: a.window, ComputedAt: now}
	since := now.Add(-a.window)

	err := a.joins.ScanJoins(ctx, groupID, func(e *model.JoinEvent) error {
		recent := !e.JoinedAt.Before(since)
		stats.TotalMembers++
		if recent {
			stats.JoinedInWindow++
		}
		if e.Invited() {
			stats.TotalInvited++
			if recent {
				stats.InvitedInWindow++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan joins for group %d: %w: %w", groupID, ErrStoreUnavailable, err)
	}

	counters, err := a.counters.GetAll(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for _, c := range counters {
		if c.InviteCount > 0 {
			stats.ActiveInviters++
		}
	}
	return stats, nil
}
