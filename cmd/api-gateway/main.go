package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Class section timetables: bulk slot assignment with conflict checking, and timetable reads.
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r, invalidations := buildRouter(cfg, logr, db, redisClient)
	invalidations.Start(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	invalidations.Stop()
	logr.Info("server stopped")
}

func buildRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*gin.Engine, *jobs.Queue) {
	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	slotRepo := repository.NewTimeSlotRepository(db)
	capabilityRepo := repository.NewTeacherSubjectRepository(db)
	sectionRepo := repository.NewClassSectionRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	assignmentRepo := repository.NewTimetableAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.CacheTTL, logr, cfg.Timetable.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	yearSvc := service.NewAcademicYearService(yearRepo, logr)
	checker := service.NewConflictChecker(slotRepo, capabilityRepo, assignmentRepo, logr)
	resolver := service.NewTimetableResolver(assignmentRepo, checker, db, metricsSvc, logr, cfg.Timetable.ItemTimeout)
	timetableSvc := service.NewTimetableService(sectionRepo, assignmentRepo, yearSvc, resolver, cacheSvc, metricsSvc, validate, logr, service.TimetableServiceConfig{
		CacheTTL:      cfg.Timetable.CacheTTL,
		MaxBatchItems: cfg.Timetable.MaxBatchItems,
	})
	invalidations := jobs.NewQueue(service.JobKindCacheInvalidation, timetableSvc.HandleInvalidation, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	timetableSvc.UseInvalidationQueue(invalidations)
	exportSvc := service.NewExportService(timetableSvc, logr, nil, nil)
	catalogSvc := service.NewCatalogService(slotRepo, capabilityRepo, logr)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cache.Readiness(redisClient)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	readers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	writers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	sections := api.Group("/class-sections/:id/timetable")
	sections.GET("", readers, timetableHandler.Get)
	sections.PUT("", writers, timetableHandler.BulkUpdate)
	sections.GET("/export", readers, timetableHandler.Export)

	api.GET("/timetables", readers, timetableHandler.Institution)
	api.GET("/time-slots", readers, catalogHandler.TimeSlots)
	api.GET("/teachers/:id/subjects", readers, catalogHandler.TeacherSubjects)
	api.GET("/metrics/snapshot", writers, metricsHandler.Snapshot)

	return r, invalidations
}
