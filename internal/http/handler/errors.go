package handler

import (
	"strconv"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/dto"
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, msg string, details ...string) {
	resp := dto.ErrorResponse{Error: msg}
	if len(details) > 0 {
		resp.Details = details[0]
	}
	c.AbortWithStatusJSON(status, resp)
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
