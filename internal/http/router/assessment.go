package router

import (
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/handler"
	"github.com/gin-gonic/gin"
)

// AssessmentRouter sets up assessment routes and the two chat variants
// scoped to one assessment.
func AssessmentRouter(rg *gin.RouterGroup, h *handler.AssessmentHandler, chat *handler.ChatHandler) {
	rg.POST("", h.Submit)
	rg.GET("/:id", h.Get)

	rg.POST("/:id/chat", chat.GeneralChat)
	rg.GET("/:id/chat/history", chat.GeneralHistory)

	journey := rg.Group("/:id/journey")
	{
		journey.POST("/chat", chat.JourneyChat)
		journey.GET("/chat/history", chat.JourneyHistory)
	}
}
