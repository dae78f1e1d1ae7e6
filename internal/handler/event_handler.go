package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"inviterank/tracker/internal/service"
	"inviterank/tracker/pkg/response"
)

// EventHandler ingests events from the chat transport.
type EventHandler struct {
	engine service.Engine
	admins service.AdminDirectory
}

func NewEventHandler(engine service.Engine, admins service.AdminDirectory) *EventHandler {
	return &EventHandler{engine: engine, admins: admins}
}

type ActorPayload struct {
	ID   int64   `json:"id"`
	Name *string `json:"name"`
}

type MemberPayload struct {
	ID    int64  `json:"id" binding:"required"`
	Name  string `json:"name"`
	IsBot bool   `json:"is_bot"`
}

type JoinEventRequest struct {
	GroupID    int64           `json:"group_id" binding:"required"`
	GroupTitle string          `json:"group_title"`
	MessageID  int64           `json:"message_id"`
	DedupToken string          `json:"dedup_token"`
	Actor      *ActorPayload   `json:"actor"`
	Members    []MemberPayload `json:"members" binding:"required,min=1,dive"`
	JoinedAt   *time.Time      `json:"joined_at"`
}

type JoinResult struct {
	UserID        int64  `json:"user_id"`
	Attribution   string `json:"attribution"`
	InviterID     int64  `json:"inviter_id,omitempty"`
	Outcome       string `json:"outcome,omitempty"`
	Count         int64  `json:"count,omitempty"`
	FirstDelivery bool   `json:"first_delivery"`
}

// derivedTokenSpace namespaces hashed per-member tokens.
var derivedTokenSpace = uuid.MustParse("4f6d1c2a-8b1e-5c3f-9a7d-2e0b6c4d8f10")

// dedupToken names the join of one member. A single member may carry the
// transport's own token; otherwise the token is derived from the message.
func (r *JoinEventRequest) dedupToken(memberID int64) (string, error) {
	switch {
	case r.DedupToken != "" && len(r.Members) == 1:
		return r.DedupToken, nil
	case r.DedupToken != "":
		suffix := ":" + strconv.FormatInt(memberID, 10)
		base := r.DedupToken
		if len(base)+len(suffix) > service.MaxDedupTokenLen {
			// Stable across redeliveries, so a long transport token still dedups.
			base = uuid.NewSHA1(derivedTokenSpace, []byte(base)).String()
		}
		return base + suffix, nil
	case r.MessageID != 0:
		return fmt.Sprintf("%d:%d", r.MessageID, memberID), nil
	}
	return "", fmt.Errorf("%w: message_id or dedup_token is required", service.ErrInvalidEvent)
}

func (r *JoinEventRequest) notifications() ([]service.JoinNotification, error) {
	var actorID int64
	var actorName *string
	if r.Actor != nil {
		actorID = r.Actor.ID
		actorName = r.Actor.Name
	}
	var joinedAt time.Time
	if r.JoinedAt != nil {
		joinedAt = *r.JoinedAt
	}

	out := make([]service.JoinNotification, 0, len(r.Members))
	for _, m := range r.Members {
		token, err := r.dedupToken(m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, service.JoinNotification{
			GroupID:       r.GroupID,
			GroupTitle:    r.GroupTitle,
			JoiningUserID: m.ID,
			JoiningIsBot:  m.IsBot,
			ActorUserID:   actorID,
			ActorName:     actorName,
			DedupToken:    token,
			JoinedAt:      joinedAt,
		})
	}
	return out, nil
}

// Join handles POST /api/v1/events/join. Members are processed in order and
// the first failure aborts the request; redelivering the whole event is safe.
func (h *EventHandler) Join(c *gin.Context) {
	var req JoinEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	notifications, err := req.notifications()
	if err != nil {
		writeServiceError(c, err)
		return
	}

	results := make([]JoinResult, 0, len(notifications))
	fresh := false
	for _, n := range notifications {
		out, err := h.engine.HandleJoin(c.Request.Context(), n)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		res := JoinResult{
			UserID:        n.JoiningUserID,
			Attribution:   out.Attribution.Kind.String(),
			InviterID:     out.Attribution.InviterID,
			FirstDelivery: out.FirstDelivery,
		}
		if out.Credit != nil {
			res.Outcome = out.Credit.Outcome.String()
			res.Count = out.Credit.Count
		}
		fresh = fresh || out.FirstDelivery
		results = append(results, res)
	}

	if !fresh {
		response.Accepted(c, results)
		return
	}
	response.Success(c, results)
}

type MessageEventRequest struct {
	GroupID   int64 `json:"group_id" binding:"required"`
	UserID    int64 `json:"user_id" binding:"required"`
	MessageID int64 `json:"message_id"`
	IsAdmin   bool  `json:"is_admin"`
}

// Message handles POST /api/v1/events/message and always answers with a
// verdict.
func (h *EventHandler) Message(c *gin.Context) {
	var req MessageEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	verdict := h.engine.HandleMessage(c.Request.Context(), service.MessageNotification{
		GroupID:   req.GroupID,
		UserID:    req.UserID,
		MessageID: req.MessageID,
		IsAdmin:   req.IsAdmin,
	})
	response.Success(c, verdict)
}

type AdminsEventRequest struct {
	GroupID int64   `json:"group_id" binding:"required"`
	UserIDs []int64 `json:"user_ids"`
}

// Admins handles PUT /api/v1/events/admins, replacing a group's
// administrator list as seen by the transport.
func (h *EventHandler) Admins(c *gin.Context) {
	var req AdminsEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.admins.Replace(c.Request.Context(), req.GroupID, req.UserIDs); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"group_id": req.GroupID, "administrators": len(req.UserIDs)})
}
