// Package main runs the org hierarchy HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hubatlas/backend/config"
	"github.com/hubatlas/backend/internal/auth"
	"github.com/hubatlas/backend/internal/middleware"
	"github.com/hubatlas/backend/internal/notify"
	"github.com/hubatlas/backend/internal/orgs"
	"github.com/hubatlas/backend/internal/permissions"
	"github.com/hubatlas/backend/internal/requests"
	"github.com/hubatlas/backend/internal/roster"
	"github.com/hubatlas/backend/internal/store"
	"github.com/hubatlas/backend/pkg/database"
	"github.com/hubatlas/backend/pkg/redis"
	"github.com/hubatlas/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Org hierarchy. Everything that reads ancestor chains goes through the
	// redis cache; only the dispatcher invalidates it.
	orgRepo := orgs.NewRepository(pool)
	chainCache := orgs.NewChainCache(orgRepo, rdb,
		time.Duration(cfg.Cache.ChainTTLSeconds)*time.Second, logger)
	walker := orgs.NewWalker(chainCache)
	orgHandler := orgs.NewHandler(orgRepo, walker)

	// Permissions
	resolver := permissions.NewResolver(chainCache)
	rosterRepo := roster.NewRepository(pool)
	rosterHandler := roster.NewHandler(rosterRepo, resolver)

	// Notifications
	mailer := notify.NewSMTPMailer(cfg.Email, cfg.Server.PublicBaseURL, logger)
	notifyRepo := notify.NewRepository(pool)
	escalator := notify.NewEscalator(chainCache, rosterRepo, mailer, notifyRepo, logger)

	// Request dispatch
	sinks := make([]requests.Sink, 0, len(cfg.Webhooks.SinkURLs))
	for _, u := range cfg.Webhooks.SinkURLs {
		sinks = append(sinks, notify.NewWebhookSink(u, time.Duration(cfg.Webhooks.TimeoutSeconds)*time.Second))
	}
	dispatcher := requests.NewDispatcher(store.New(pool), sinks, chainCache, logger)
	requestRepo := requests.NewRepository(pool)
	requestHandler := requests.NewHandler(dispatcher, resolver, walker, chainCache,
		rosterRepo, requestRepo, escalator, notifyRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Email approval link (token in query; no session)
	router.GET("/requests/:id/approve", requestHandler.ApproveByToken)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		// Orgs
		api.GET("/orgs/:id", orgHandler.GetByID)
		api.GET("/orgs/:id/children", orgHandler.ListChildren)
		api.GET("/orgs/:id/ancestors", orgHandler.ListAncestors)
		api.POST("/orgs/:id/roles", rosterHandler.Assign)

		// Update requests
		api.POST("/requests", requestHandler.Submit)
		api.GET("/requests", requestHandler.ListPending)
		api.POST("/requests/:id/approve", requestHandler.Approve)
		api.POST("/requests/:id/reject", requestHandler.Reject)
		api.GET("/requests/:id/notifications", requestHandler.ListNotifications)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
