package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/classroll/classroll-api/api/swagger"
	"github.com/classroll/classroll-api/internal/handler"
	"github.com/classroll/classroll-api/internal/middleware"
	"github.com/classroll/classroll-api/internal/models"
	"github.com/classroll/classroll-api/internal/repository"
	"github.com/classroll/classroll-api/internal/service"
	"github.com/classroll/classroll-api/pkg/cache"
	"github.com/classroll/classroll-api/pkg/config"
	"github.com/classroll/classroll-api/pkg/database"
	"github.com/classroll/classroll-api/pkg/logger"
	corsmiddleware "github.com/classroll/classroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classroll/classroll-api/pkg/middleware/requestid"
)

// @title Classroll API
// @version 1.0.0
// @description Batch attendance ledger service
// @BasePath /
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
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Stats.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats caching disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, true)
			defer cacheRepo.Close()
		}
	}

	attendanceRepo := repository.NewAttendanceRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	userRepo := repository.NewUserRepository(db)

	ledgerSvc := service.NewLedgerService(attendanceRepo, batchRepo, cacheSvc, metricsSvc, nil, logr)
	reconcileSvc := service.NewReconcileService(attendanceRepo, logr)
	statsSvc := service.NewStatsService(attendanceRepo, batchRepo, userRepo, cacheSvc, cfg.Stats.CacheTTL, logr)

	attendanceHandler := handler.NewAttendanceHandler(ledgerSvc, reconcileSvc, statsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		owners := middleware.RequireRoles(models.RoleAdmin, models.RoleBatchOwner)

		attendance := api.Group("/attendance")
		attendance.GET("", attendanceHandler.List)
		attendance.GET("/dates", attendanceHandler.MarkedDates)
		attendance.GET("/day", attendanceHandler.Day)
		attendance.GET("/stats", owners, attendanceHandler.Stats)
		attendance.GET("/export", owners, attendanceHandler.Export)
		attendance.POST("", owners, attendanceHandler.SubmitDay)
		attendance.PUT("/:id", owners, attendanceHandler.UpdateStatus)
		attendance.DELETE("", owners, attendanceHandler.DeleteDay)
		attendance.DELETE("/:id", owners, attendanceHandler.DeleteRecord)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
