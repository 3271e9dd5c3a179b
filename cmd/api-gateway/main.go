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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/emailgen-labs/emailgen-api/api/swagger"
	"github.com/emailgen-labs/emailgen-api/internal/ai"
	"github.com/emailgen-labs/emailgen-api/internal/handler"
	"github.com/emailgen-labs/emailgen-api/internal/middleware"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/platform"
	"github.com/emailgen-labs/emailgen-api/internal/qa"
	"github.com/emailgen-labs/emailgen-api/internal/repository"
	"github.com/emailgen-labs/emailgen-api/internal/service"
	"github.com/emailgen-labs/emailgen-api/pkg/cache"
	"github.com/emailgen-labs/emailgen-api/pkg/config"
	"github.com/emailgen-labs/emailgen-api/pkg/database"
	"github.com/emailgen-labs/emailgen-api/pkg/jobs"
	"github.com/emailgen-labs/emailgen-api/pkg/logger"
	corsmiddleware "github.com/emailgen-labs/emailgen-api/pkg/middleware/cors"
	reqidmiddleware "github.com/emailgen-labs/emailgen-api/pkg/middleware/requestid"
	"github.com/emailgen-labs/emailgen-api/pkg/storage"
)

// @title EmailGen Studio API
// @version 1.0.0
// @description Design-to-HTML email generation, editing, QA and deployment
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Designs.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init design storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Designs.SignedURLSecret, cfg.Designs.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	designRepo := repository.NewDesignRepository(db)
	conversionRepo := repository.NewConversionRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	modificationRepo := repository.NewModificationRepository(db)
	qaRepo := repository.NewQARepository(db)
	deploymentRepo := repository.NewDeploymentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	aiClient := ai.NewClient(cfg.AI)
	platformClient := platform.NewClient(cfg.Deployments)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "emailgen-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	designSvc := service.NewDesignService(designRepo, fileStore, signer, userRepo, logr, service.DesignServiceConfig{
		MaxFileSize:  cfg.Designs.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Designs.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})
	documentSvc := service.NewDocumentService(documentRepo, userRepo, logr)
	modificationSvc := service.NewModificationService(modificationRepo, documentRepo, aiClient, userRepo, logr)
	qaSvc := service.NewQAService(qaRepo, documentRepo, qa.NewChecker(cfg.QA.MaxDocumentKB), cacheRepo, logr, service.QAServiceConfig{
		CacheTTL: cfg.QA.CacheTTL,
	})
	qaSvc.SetMetrics(metricsSvc)

	// The queue handler closes over the service pointer assigned below.
	var conversionSvc *service.ConversionService
	conversionQueue := jobs.NewQueue("conversions", func(ctx context.Context, job jobs.Job) error {
		start := time.Now()
		err := conversionSvc.Process(ctx, job)
		metricsSvc.ObserveJob("conversions", err != nil, time.Since(start))
		return err
	}, jobs.QueueConfig{
		Workers:    cfg.Conversions.WorkerConcurrency,
		MaxRetries: cfg.Conversions.WorkerRetries,
		Logger:     logr,
	})
	conversionSvc = service.NewConversionService(conversionRepo, designRepo, fileStore, aiClient, documentSvc, conversionQueue, cacheRepo, logr, service.ConversionServiceConfig{
		ResultTTL:        cfg.Conversions.ResultTTL,
		CleanupInterval:  cfg.Conversions.CleanupInterval,
		ProgressCacheTTL: cfg.Conversions.ProgressCacheTTL,
	})

	var deploymentSvc *service.DeploymentService
	deploymentQueue := jobs.NewQueue("deployments", func(ctx context.Context, job jobs.Job) error {
		start := time.Now()
		err := deploymentSvc.Process(ctx, job)
		metricsSvc.ObserveJob("deployments", err != nil, time.Since(start))
		return err
	}, jobs.QueueConfig{
		Workers:    cfg.Deployments.WorkerConcurrency,
		MaxRetries: cfg.Deployments.WorkerRetries,
		Logger:     logr,
	})
	deploymentSvc = service.NewDeploymentService(deploymentRepo, documentRepo, qaSvc, platformClient, deploymentQueue, userRepo, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conversionQueue.Start(rootCtx)
	deploymentQueue.Start(rootCtx)
	defer conversionQueue.Stop()
	defer deploymentQueue.Stop()

	conversionSvc.RecoverPendingJobs(rootCtx)
	conversionSvc.StartCleanup(rootCtx)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	designHandler := handler.NewDesignHandler(designSvc)
	conversionHandler := handler.NewConversionHandler(conversionSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	modificationHandler := handler.NewModificationHandler(modificationSvc)
	qaHandler := handler.NewQAHandler(qaSvc)
	deploymentHandler := handler.NewDeploymentHandler(deploymentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "redis"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	users := authed.Group("/users")
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
	users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)

	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleEditor)

	designs := authed.Group("/designs")
	designs.POST("", editors, designHandler.Upload)
	designs.GET("", designHandler.List)
	designs.GET("/:id", designHandler.Get)
	designs.GET("/:id/download", designHandler.Download)
	designs.DELETE("/:id", editors, designHandler.Delete)

	conversions := authed.Group("/conversions")
	conversions.POST("", editors, conversionHandler.Create)
	conversions.GET("/:id", conversionHandler.GetStatus)

	documents := authed.Group("/documents")
	documents.POST("", editors, documentHandler.Create)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.PUT("/:id", editors, documentHandler.Update)
	documents.DELETE("/:id", editors, documentHandler.Delete)
	documents.GET("/:id/versions", documentHandler.ListVersions)
	documents.GET("/:id/versions/:version", documentHandler.GetVersion)
	documents.POST("/:id/restore", editors, documentHandler.Restore)
	documents.POST("/:id/modifications", editors, modificationHandler.Propose)
	documents.GET("/:id/modifications", modificationHandler.ListByDocument)
	documents.POST("/:id/qa/runs", middleware.Audit(userRepo, models.AuditActionQARun, "qa_run"), qaHandler.Run)
	documents.GET("/:id/qa/runs", qaHandler.History)
	documents.GET("/:id/qa/latest", qaHandler.Latest)
	documents.GET("/:id/qa/report", qaHandler.Report)
	documents.GET("/:id/deployments", deploymentHandler.ListByDocument)

	modifications := authed.Group("/modifications")
	modifications.GET("/:id", modificationHandler.Get)
	modifications.POST("/:id/accept", editors, modificationHandler.Accept)
	modifications.POST("/:id/revert", editors, modificationHandler.Revert)
	modifications.POST("/:id/reject", editors, modificationHandler.Reject)

	deployments := authed.Group("/deployments")
	deployments.POST("", editors, deploymentHandler.Create)
	deployments.GET("/:id", deploymentHandler.GetStatus)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
