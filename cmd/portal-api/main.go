package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/identica-edu/portal-api/api/swagger"
	"github.com/identica-edu/portal-api/internal/directory"
	"github.com/identica-edu/portal-api/internal/handler"
	"github.com/identica-edu/portal-api/internal/middleware"
	"github.com/identica-edu/portal-api/internal/models"
	"github.com/identica-edu/portal-api/internal/repository"
	"github.com/identica-edu/portal-api/internal/service"
	"github.com/identica-edu/portal-api/pkg/cache"
	"github.com/identica-edu/portal-api/pkg/config"
	"github.com/identica-edu/portal-api/pkg/database"
	"github.com/identica-edu/portal-api/pkg/logger"
	corsmiddleware "github.com/identica-edu/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/identica-edu/portal-api/pkg/middleware/requestid"
)

// @title Identica Student Portal API
// @version 1.0.0
// @description University portal: profiles, website subscriptions, dashboards
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
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	websiteRepo := repository.NewWebsiteRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	dirService := directory.New(logr)
	rolePolicy := service.NewRoleAccessPolicy()
	dirPolicy := service.NewDirectoryAccessPolicy(dirService)

	profileSvc := service.NewProfileService(profileRepo, userRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, profileSvc, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	subSvc := service.NewSubscriptionService(subRepo, websiteRepo, rolePolicy, metricsSvc, validate, logr)
	catalogSvc := service.NewCatalogService(websiteRepo, cacheRepo, rolePolicy, metricsSvc, validate, logr, cfg.Catalog.CacheEnabled, cfg.Catalog.CacheTTL)
	dashboardSvc := service.NewDashboardService(subSvc, profileSvc, subRepo, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, subRepo, profileSvc, validate, logr, cfg.Reports.Enabled)

	authHandler := handler.NewAuthHandler(authSvc, profileSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, profileSvc)
	subHandler := handler.NewSubscriptionHandler(subSvc, profileSvc)
	adminHandler := handler.NewAdminHandler(subSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, profileSvc)
	directoryHandler := handler.NewDirectoryHandler(dirPolicy, dirService)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc, profileSvc)
	reportHandler := handler.NewReportHandler(reportSvc, profileSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/profile", profileHandler.Get)
	protected.PUT("/profile", profileHandler.Update)
	protected.GET("/dashboard", dashboardHandler.Load)
	protected.GET("/dashboard/monitor", middleware.MinRole(models.RoleMonitor), dashboardHandler.Monitor)
	protected.GET("/dashboard/curator", middleware.MinRole(models.RoleCurator), dashboardHandler.Curator)
	protected.GET("/dashboard/teacher", middleware.MinRole(models.RoleTeacher), dashboardHandler.Teacher)

	protected.GET("/catalog", catalogHandler.Browse)
	protected.GET("/catalog/websites/:id", catalogHandler.GetWebsite)

	protected.GET("/subscriptions", subHandler.List)
	protected.POST("/subscriptions", subHandler.Create)
	protected.PUT("/subscriptions", subHandler.Replace)
	protected.DELETE("/subscriptions/:id", subHandler.Cancel)

	protected.GET("/directory/pages", directoryHandler.Pages)
	protected.POST("/directory/check", directoryHandler.Check)
	protected.GET("/directory/me", directoryHandler.Me)

	protected.GET("/announcements", announcementHandler.Feed)
	protected.GET("/announcements/mine", announcementHandler.Mine)
	protected.POST("/announcements", middleware.MinRole(models.RoleMonitor), announcementHandler.Publish)

	protected.GET("/students", middleware.MinRole(models.RoleMonitor), profileHandler.Students)

	reports := protected.Group("/reports")
	reports.Use(middleware.MinRole(models.RoleCurator))
	reports.POST("", reportHandler.Generate)
	reports.GET("", reportHandler.Mine)
	reports.GET("/:id", reportHandler.Get)
	reports.GET("/:id/export", reportHandler.Export)

	// Role changes go one tier lower: curators manage monitor promotions.
	protected.PUT("/admin/roles", middleware.MinRole(models.RoleCurator), profileHandler.ChangeRole)

	admin := protected.Group("/admin")
	admin.Use(middleware.MinRole(models.RoleAdmin))
	admin.GET("/subscriptions/pending", adminHandler.PendingSubscriptions)
	admin.POST("/subscriptions/:id/approve", adminHandler.Approve)
	admin.POST("/subscriptions/:id/reject", adminHandler.Reject)
	admin.POST("/subscriptions/bulk-approve", adminHandler.BulkApprove)
	admin.POST("/subscriptions/bulk-reject", adminHandler.BulkReject)
	admin.POST("/accounts", profileHandler.CreateAccount)
	admin.POST("/categories", catalogHandler.CreateCategory)
	admin.POST("/websites", catalogHandler.CreateWebsite)
	admin.PUT("/websites/:id", catalogHandler.UpdateWebsite)
	admin.DELETE("/websites/:id", catalogHandler.DeactivateWebsite)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
