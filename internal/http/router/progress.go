package router

import (
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func ProgressRouter(rg *gin.RouterGroup, h *handler.ProgressHandler) {
	rg.GET("/:session_id", h.Get)
	rg.PUT("/:session_id", h.Put)
	rg.DELETE("/:session_id", h.Delete)
}
