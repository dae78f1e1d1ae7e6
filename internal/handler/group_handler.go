package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"inviterank/tracker/internal/service"
	"inviterank/tracker/pkg/response"
)

// GroupHandler serves the read models of a group.
type GroupHandler struct {
	engine service.Engine
	gate   service.AccessGate
}

func NewGroupHandler(engine service.Engine, gate service.AccessGate) *GroupHandler {
	return &GroupHandler{engine: engine, gate: gate}
}

type LeaderboardRow struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Count  int64  `json:"count"`
}

type LeaderboardView struct {
	GroupID    int64            `json:"group_id"`
	Entries    []LeaderboardRow `json:"entries"`
	BuiltAt    time.Time        `json:"built_at"`
	StaleAfter time.Time        `json:"stale_after,omitzero"`
}

func (h *GroupHandler) Leaderboard(c *gin.Context) {
	groupID, ok := int64Param(c, "group_id")
	if !ok {
		return
	}

	snap, err := h.engine.Leaderboard(c.Request.Context(), groupID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	view := LeaderboardView{
		GroupID:    snap.GroupID,
		Entries:    make([]LeaderboardRow, 0, len(snap.Entries)),
		BuiltAt:    snap.BuiltAt,
		StaleAfter: snap.StaleAfter,
	}
	for _, e := range snap.Entries {
		view.Entries = append(view.Entries, LeaderboardRow{Rank: e.Rank, UserID: e.UserID, Name: e.Name(), Count: e.Count})
	}
	response.Success(c, view)
}

func (h *GroupHandler) Stats(c *gin.Context) {
	groupID, ok := int64Param(c, "group_id")
	if !ok {
		return
	}

	stats, err := h.engine.Stats(c.Request.Context(), groupID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

type MemberView struct {
	GroupID int64           `json:"group_id"`
	UserID  int64           `json:"user_id"`
	Count   int64           `json:"count"`
	Verdict service.Verdict `json:"verdict"`
}

// Member reports a user's count and the verdict the gate would give them now.
// Unlike message ingestion this read does not fail open.
func (h *GroupHandler) Member(c *gin.Context) {
	groupID, ok := int64Param(c, "group_id")
	if !ok {
		return
	}
	userID, ok := int64Param(c, "user_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	count, err := h.engine.Count(ctx, groupID, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	verdict, err := h.gate.Evaluate(ctx, groupID, userID, false)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, MemberView{GroupID: groupID, UserID: userID, Count: count, Verdict: verdict})
}
