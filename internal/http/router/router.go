package router

import (
	"net/http"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/handler"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/middleware"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AuthSecret   string
	AuthAudience string
}

// Dependencies are the services the routes are served from.
type Dependencies struct {
	Services *service.Services
	Chat     handler.ChatPipeline
	Catalog  service.CatalogProvider
}

func SetupRoutes(router *gin.Engine, deps Dependencies, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.OptionalAuth(cfg.AuthSecret, cfg.AuthAudience))
	{
		assessmentHandler := handler.NewAssessmentHandler(deps.Services.Assessments())
		chatHandler := handler.NewChatHandler(deps.Chat, deps.Services.ChatHistory())
		AssessmentRouter(v1.Group("/assessments"), assessmentHandler, chatHandler)

		progressHandler := handler.NewProgressHandler(deps.Services.Progress())
		ProgressRouter(v1.Group("/progress"), progressHandler)

		catalogHandler := handler.NewCatalogHandler(deps.Catalog)
		v1.GET("/catalog", catalogHandler.Get)
	}
}
