package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/recruit-pipeline-api/api/swagger"
	"github.com/noah-isme/recruit-pipeline-api/internal/handler"
	"github.com/noah-isme/recruit-pipeline-api/internal/middleware"
	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	"github.com/noah-isme/recruit-pipeline-api/internal/repository"
	"github.com/noah-isme/recruit-pipeline-api/internal/service"
	"github.com/noah-isme/recruit-pipeline-api/pkg/cache"
	"github.com/noah-isme/recruit-pipeline-api/pkg/config"
	"github.com/noah-isme/recruit-pipeline-api/pkg/database"
	"github.com/noah-isme/recruit-pipeline-api/pkg/jobs"
	"github.com/noah-isme/recruit-pipeline-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/recruit-pipeline-api/pkg/middleware/requestid"
)

// @title Recruit Pipeline API
// @version 1.0.0
// @description Submission lifecycle engine for the recruitment pipeline
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logr.Info("migrations applied")
	}

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable; report cache and event publishing disabled", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	store := repository.NewStore(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	jobRepo := repository.NewJobRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	var cacheStore service.CacheStore
	if redisClient != nil {
		cacheStore = repository.NewCacheRepository(redisClient, cfg.Reports.CacheNamespace)
	}
	reportCache := service.NewReportCache(cacheStore, metrics, cfg.Reports.CacheTTL, logr)

	sinks := []service.NotificationSink{service.NewLogSink(logr)}
	if redisClient != nil && cfg.Notifications.Channel != "" {
		sinks = append(sinks, repository.NewRedisEventPublisher(redisClient, cfg.Notifications.Channel))
	}
	dispatcher := service.NewNotificationDispatcher(sinks, metrics, logr, cfg.Notifications.Enabled)
	notifyQueue := jobs.NewQueue("notifications", dispatcher.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.Buffer,
		NoRetry:    true,
		Logger:     logr,
	})
	dispatcher.Attach(notifyQueue)
	notifyQueue.Start(context.Background())
	defer notifyQueue.Stop()

	submissions := service.NewSubmissionService(
		store,
		submissionRepo,
		jobRepo,
		service.NewCodeGenerator(cfg.Submissions.CodePrefix, cfg.Submissions.CodeWidth),
		service.NewCapacityTracker(metrics, logr),
		service.NewActivityRecorder(activityRepo, metrics, logr),
		validate,
		logr,
		service.SubmissionServiceConfig{
			CodeRetries: cfg.Submissions.CodeRetries,
			TxTimeout:   cfg.Submissions.TxTimeout,
		},
		service.WithSubmissionDispatcher(dispatcher),
		service.WithSubmissionMetrics(metrics),
		service.WithReportCache(reportCache),
	)
	reports := service.NewReportService(repository.NewReportRepository(db), reportCache, logr)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(middleware.Metrics(metrics))

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = redisPinger{redisClient}
	}
	ops := handler.NewOpsHandler(metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	submissionHandler := handler.NewSubmissionHandler(submissions)
	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokens))
	api.Use(middleware.ResponseMeta())
	{
		api.POST("/submissions", submissionHandler.Create)
		api.GET("/submissions/:code", submissionHandler.Get)
		api.POST("/submissions/:code/transitions", submissionHandler.Transition)
		api.PATCH("/submissions/:code/client-status", submissionHandler.UpdateClientStatus)
		api.GET("/submissions/:code/timeline", submissionHandler.Timeline)
		api.POST("/submissions/:code/reverse-placement",
			middleware.RequireRoles(models.RoleAdmin, models.RoleManager),
			submissionHandler.ReversePlacement)

		api.GET("/jobs/:code/submissions", submissionHandler.ListByJob)
		api.GET("/jobs/:code/capacity", submissionHandler.Capacity)

		if cfg.Reports.Enabled {
			reportHandler := handler.NewReportHandler(reports)
			api.GET("/reports/placements", reportHandler.Placements)
			api.GET("/reports/time-to-fill", reportHandler.TimeToFill)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
