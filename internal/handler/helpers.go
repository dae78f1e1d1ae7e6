package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"inviterank/tracker/internal/service"
	"inviterank/tracker/pkg/response"
)

// int64Param parses a numeric path parameter, answering 400 when it is not one.
func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// writeServiceError maps engine errors onto responses. Store failures become
// 503 so event sources redeliver and readers can tell them apart from empty
// data.
func writeServiceError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrInvalidEvent), errors.Is(err, service.ErrInvalidThreshold):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrCounterUpdateFailed):
		response.ServiceUnavailable(c, "invite counter update failed, retry later")
	case errors.Is(err, service.ErrStoreUnavailable):
		response.ServiceUnavailable(c, "invite store unavailable")
	default:
		response.InternalError(c, "internal server error")
	}
}
