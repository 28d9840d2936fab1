package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/baraatakala/training-center-sub003/api/swagger"
	"github.com/baraatakala/training-center-sub003/internal/handler"
	"github.com/baraatakala/training-center-sub003/internal/middleware"
	"github.com/baraatakala/training-center-sub003/internal/models"
	"github.com/baraatakala/training-center-sub003/internal/repository"
	"github.com/baraatakala/training-center-sub003/internal/service"
	"github.com/baraatakala/training-center-sub003/pkg/cache"
	"github.com/baraatakala/training-center-sub003/pkg/config"
	"github.com/baraatakala/training-center-sub003/pkg/database"
	"github.com/baraatakala/training-center-sub003/pkg/logger"
	corsmiddleware "github.com/baraatakala/training-center-sub003/pkg/middleware/cors"
	reqidmiddleware "github.com/baraatakala/training-center-sub003/pkg/middleware/requestid"
	"github.com/baraatakala/training-center-sub003/pkg/signing"
)

// @title Training Center Attendance API
// @version 1.0.0
// @description Attendance tracking, proximity check-in and weighted scoring for training centers
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
		logr.Sugar().Warnw("redis unavailable, score caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	scoringConfigRepo := repository.NewScoringConfigRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	signer := signing.NewShareLinkSigner(cfg.CheckIn.ShareLinkSecret, cfg.CheckIn.ShareLinkTTL)
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "training-center-api",
	})
	sessionSvc := service.NewSessionService(sessionRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sessionRepo, validate, logr)
	scoringSvc := service.NewScoringService(attendanceRepo, enrollmentRepo, sessionRepo, scoringConfigRepo, cacheRepo, userRepo, metricsSvc, validate, logr, cfg.Scoring.CacheTTL)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentRepo, sessionRepo, userRepo, scoringSvc, validate, logr)
	checkInSvc := service.NewCheckInService(tokenRepo, sessionRepo, enrollmentRepo, attendanceRepo, repository.IsUniqueViolation, scoringSvc, metricsSvc, validate, logr)
	tokenSvc := service.NewTokenService(tokenRepo, sessionRepo, userRepo, signer, validate, logr, cfg.CheckIn.TokenTTL)
	exportSvc := service.NewExportService(attendanceSvc, sessionSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	checkInHandler := handler.NewCheckInHandler(checkInSvc, tokenSvc)
	tokenHandler := handler.NewTokenHandler(tokenSvc)
	scoringHandler := handler.NewScoringHandler(scoringSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
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
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	api.GET("/check-in/link", checkInHandler.ResolveShareLink)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	protected.POST("/sessions", staff, sessionHandler.Create)
	protected.GET("/sessions", sessionHandler.List)
	protected.GET("/sessions/:id", sessionHandler.Get)
	protected.PUT("/sessions/:id/schedule", staff, sessionHandler.UpdateSchedule)
	protected.PUT("/sessions/:id/name", staff, sessionHandler.Rename)

	protected.POST("/enrollments", staff, enrollmentHandler.Create)
	protected.GET("/enrollments", enrollmentHandler.List)
	protected.PUT("/enrollments/:id/status", staff, enrollmentHandler.UpdateStatus)
	protected.PUT("/enrollments/:id/host", staff, enrollmentHandler.SetHost)
	protected.DELETE("/enrollments/:id/host", staff, enrollmentHandler.ClearHost)
	protected.GET("/enrollments/:id/attendance", attendanceHandler.History)
	protected.GET("/enrollments/:id/score", scoringHandler.Score)

	protected.PUT("/attendance", staff, attendanceHandler.Mark)
	protected.GET("/attendance", staff, attendanceHandler.List)
	protected.DELETE("/attendance", admin, attendanceHandler.Delete)

	protected.POST("/check-in", checkInHandler.CheckIn)
	protected.GET("/check-in/validate", checkInHandler.Validate)
	protected.POST("/check-in/windows", staff, tokenHandler.Open)
	protected.GET("/check-in/windows/active", staff, tokenHandler.Active)
	protected.DELETE("/check-in/windows/:token", staff, tokenHandler.Close)

	protected.GET("/scoring/config", staff, scoringHandler.GetConfig)
	protected.PUT("/scoring/config", staff, scoringHandler.UpdateConfig)

	if cfg.Exports.Enabled {
		protected.GET("/sessions/:id/export", staff, exportHandler.SessionReport)
		protected.GET("/enrollments/:id/export", staff, exportHandler.EnrollmentHistory)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
