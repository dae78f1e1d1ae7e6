package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inviterank/tracker/internal/handler/middleware"
	"inviterank/tracker/internal/service"
	"inviterank/tracker/pkg/response"
)

type AdminHandler struct {
	registry   service.GroupRegistry
	reconciler *service.Reconciler
	logger     *zap.Logger
}

func NewAdminHandler(registry service.GroupRegistry, reconciler *service.Reconciler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		registry:   registry,
		reconciler: reconciler,
		logger:     logger.Named("admin"),
	}
}

// ListGroups returns all registered groups.
func (h *AdminHandler) ListGroups(c *gin.Context) {
	groups, err := h.registry.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, groups)
}

type RegisterGroupRequest struct {
	Title string `json:"title"`
}

// RegisterGroup creates a group or renames an existing one.
func (h *AdminHandler) RegisterGroup(c *gin.Context) {
	groupID, ok := int64Param(c, "group_id")
	if !ok {
		return
	}
	var req RegisterGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	group, err := h.registry.Register(c.Request.Context(), groupID, req.Title)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, group)
}

type SetThresholdRequest struct {
	Threshold *int `json:"threshold" binding:"required"`
}

// SetThreshold changes how many invites members need before posting; 0
// disables gating.
func (h *AdminHandler) SetThreshold(c *gin.Context) {
	groupID, ok := int64Param(c, "group_id")
	if !ok {
		return
	}
	var req SetThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	group, err := h.registry.SetThreshold(c.Request.Context(), groupID, *req.Threshold)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	fields := []zap.Field{zap.Int64("group_id", groupID), zap.Int("threshold", *req.Threshold)}
	if claims, ok := middleware.ClaimsFrom(c); ok {
		fields = append(fields, zap.String("subject", claims.Subject))
	}
	h.logger.Info("threshold changed via admin api", fields...)
	response.Success(c, group)
}

// Reconcile runs one reconciliation sweep now.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	credited, err := h.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"credited": credited})
}
