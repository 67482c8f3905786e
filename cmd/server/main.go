package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/id"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/llm"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/otel"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/config"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/catalog"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/middleware"
	httprouter "github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/router"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/metrics"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/queue"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet, OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "advisor api starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	questions, err := loadCatalog(ctx, cfg.Catalog)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load question catalog", "error", err)
		os.Exit(1)
	}

	m := metrics.NewMetrics()
	stores := store.NewStores(database.Queries())
	progressStore := progress.NewRedisStore(redisClient, cfg.Progress.TTL)

	services := service.NewServices(stores, service.NewTxRunner(database), questions, progressStore, m)

	pipeline, dispatcher := buildChatPipeline(ctx, cfg, stores, redisClient, m)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, m, httprouter.Dependencies{
		Services: services,
		Chat:     pipeline,
		Catalog:  questions,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: chat responses stream for as long as the model talks.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if d, ok := dispatcher.(*brain.GoroutineDispatcher); ok {
		waitDone := make(chan struct{})
		go func() {
			d.Wait()
			close(waitDone)
		}()
		select {
		case <-waitDone:
		case <-shutdownCtx.Done():
			slog.WarnContext(shutdownCtx, "insight extraction still running at shutdown")
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// loadCatalog uses the embedded catalog unless a file is configured, in which
// case the file is watched and reloaded on change.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig) (*catalog.Source, error) {
	if cfg.Path == "" {
		return catalog.NewSource(catalog.Default()), nil
	}

	c, err := catalog.LoadFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	source := catalog.NewSource(c)
	if err := source.Watch(ctx, cfg.Path); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "question catalog loaded", "path", cfg.Path, "version", c.Version)
	return source, nil
}

// buildChatPipeline wires the chat LLM, the insight extractor and the
// dispatcher for detached extraction. A missing chat API key leaves the
// pipeline without a client so chat requests answer 500 instead of the
// server refusing to boot.
func buildChatPipeline(ctx context.Context, cfg config.Config, stores *store.Stores, redisClient *redis.Client, m *metrics.Metrics) (*brain.ChatPipeline, brain.InsightDispatcher) {
	var chatClient llm.Client
	if cfg.ChatLLM.Enabled() {
		client, err := llm.New(ctx, cfg.ChatLLM.ClientConfig())
		if err != nil {
			slog.ErrorContext(ctx, "failed to create chat llm client", "error", err)
		} else {
			chatClient = client
		}
	} else {
		slog.WarnContext(ctx, "chat llm not configured, chat endpoints will fail", "provider", cfg.ChatLLM.Provider)
	}

	var extractor *brain.InsightExtractor
	if cfg.InsightLLM.Enabled() {
		client, err := llm.New(ctx, cfg.InsightLLM.ClientConfig())
		if err != nil {
			slog.ErrorContext(ctx, "failed to create insight llm client, extraction disabled", "error", err)
		} else {
			extractor = brain.NewInsightExtractor(client, stores.LLMEvals(), brain.WithExtractorMetrics(m))
		}
	}

	var dispatcher brain.InsightDispatcher
	switch {
	case extractor == nil:
	case cfg.Insights.Dispatch == config.InsightDispatchQueue:
		producer := queue.NewRedisProducer(redisClient, cfg.Redis.Stream, slog.Default())
		dispatcher = brain.NewQueueDispatcher(producer)
		slog.InfoContext(ctx, "insight extraction dispatched to queue", "stream", cfg.Redis.Stream)
	default:
		dispatcher = brain.NewGoroutineDispatcher(extractor, stores.Messages())
	}

	pipeline := brain.NewChatPipeline(brain.PipelineStores{
		Assessments:   stores.Assessments(),
		Results:       stores.Results(),
		Journey:       stores.Journey(),
		Conversations: stores.Conversations(),
		Messages:      stores.Messages(),
	}, chatClient, extractor, dispatcher,
		brain.WithPipelineMetrics(m),
		brain.WithMaxTokens(cfg.ChatLLM.MaxTokens),
	)
	return pipeline, dispatcher
}

func setupRouter(cfg config.Config, m *metrics.Metrics, deps httprouter.Dependencies) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(m))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	httprouter.SetupRoutes(router, deps, httprouter.RouterConfig{
		AuthSecret:   cfg.Auth.SupabaseJWTSecret,
		AuthAudience: cfg.Auth.Audience,
	})

	return router
}

const banner = `
   ___       __      _                        _
  / _ |  ___/ /_  __(_)__ ___  ____  ___ ____ (_)
 / __ | / _  /| |/ / (_-</ _ \/ __/ / _ '/ _ \/ /
/_/ |_| \_,_/ |___/_/___/\___/_/    \_,_/ .__/_/
                                       /_/
`
