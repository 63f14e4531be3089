package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuslabs/labops-api/api/swagger"
	"github.com/campuslabs/labops-api/internal/handler"
	"github.com/campuslabs/labops-api/internal/middleware"
	"github.com/campuslabs/labops-api/internal/models"
	"github.com/campuslabs/labops-api/internal/repository"
	"github.com/campuslabs/labops-api/internal/service"
	"github.com/campuslabs/labops-api/pkg/cache"
	"github.com/campuslabs/labops-api/pkg/config"
	"github.com/campuslabs/labops-api/pkg/database"
	"github.com/campuslabs/labops-api/pkg/logger"
	corsmiddleware "github.com/campuslabs/labops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuslabs/labops-api/pkg/middleware/requestid"
	"github.com/campuslabs/labops-api/pkg/storage"
)

// @title LabOps API
// @version 1.0.0
// @description College laboratory inventory and maintenance ticketing service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// List caching degrades to direct reads without Redis.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	labRepo := repository.NewLabRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	deadstockRepo := repository.NewDeadstockRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "labops-api",
	})
	requestSvc := service.NewRequestService(requestRepo, labRepo, cacheRepo, userRepo,
		validate, logr, cfg.Requests.ListCacheTTL,
		service.WithRequestMetrics(metricsSvc))
	labSvc := service.NewLabService(labRepo, userRepo, validate, logr)
	deadstockSvc := service.NewDeadstockService(deadstockRepo, labRepo, userRepo, validate, logr, cfg.Labs.DeadstockEnabled)
	userSvc := service.NewUserService(userRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, requestSvc, deadstockSvc, metricsSvc,
			exportStore, signer, service.ExportServiceConfig{
				WorkerConcurrency: cfg.Exports.WorkerConcurrency,
				Logger:            logr,
			})

		exportSvc.Start(ctx)
		defer exportSvc.Stop()

		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Exports.CleanupSchedule, func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			exportSvc.CleanupExpired(cleanupCtx, cfg.Exports.SignedURLTTL)
		}); err != nil {
			logr.Sugar().Fatalw("invalid export cleanup schedule", "schedule", cfg.Exports.CleanupSchedule, "error", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	labHandler := handler.NewLabHandler(labSvc)
	deadstockHandler := handler.NewDeadstockHandler(deadstockSvc)
	userHandler := handler.NewUserHandler(userSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}
	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)
		authed.GET("/auth/me", authHandler.Me)

		requests := authed.Group("/requests")
		{
			requests.POST("", requestHandler.Create)
			requests.GET("", requestHandler.List)
			requests.GET("/:id", requestHandler.Get)
			requests.GET("/:id/view", requestHandler.View)
			requests.PUT("/:id/steps/:ordinal", requestHandler.UpdateStep)
			requests.POST("/:id/advance", requestHandler.Advance)
			requests.POST("/:id/decision",
				middleware.RequireRoles(models.RoleAdmin),
				requestHandler.Decide)
		}

		labs := authed.Group("/labs")
		{
			labs.GET("", labHandler.List)
			labs.GET("/:id", labHandler.Get)
			labs.GET("/:id/equipment", labHandler.ListEquipmentCounts)
			labs.POST("", middleware.RequireRoles(models.RoleAdmin), labHandler.Create)
			labs.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), labHandler.Update)
			labs.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), labHandler.Delete)
			labs.PUT("/:id/equipment",
				middleware.RequireRoles(models.RoleAdmin, models.RoleLabIncharge),
				labHandler.UpsertEquipmentCount)
		}

		if cfg.Labs.DeadstockEnabled {
			deadstock := authed.Group("/deadstock")
			deadstock.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleLabIncharge))
			{
				deadstock.POST("", deadstockHandler.Create)
				deadstock.GET("", deadstockHandler.List)
			}
		}

		if cfg.Exports.Enabled {
			exportHandler := handler.NewExportHandler(exportSvc)
			exports := authed.Group("/exports")
			{
				exports.POST("",
					middleware.Audit(userRepo, models.AuditActionRequestExport, "exports"),
					exportHandler.Create)
				exports.GET("/:id", exportHandler.Status)
			}
			// Download links carry their own signed token, so no session is required.
			api.GET("/exports/download/:token", exportHandler.Download)
		}

		users := authed.Group("/users")
		{
			admin := middleware.RequireRoles(models.RoleAdmin)
			users.GET("", admin, userHandler.List)
			// Any account may read its own record.
			users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
			users.POST("", admin, userHandler.Create)
			users.PUT("/:id", admin, userHandler.Update)
			users.DELETE("/:id", admin, userHandler.Delete)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
