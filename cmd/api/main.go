package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/student-records-api/api/swagger"
	"github.com/noah-isme/student-records-api/internal/handler"
	"github.com/noah-isme/student-records-api/internal/media"
	internalmw "github.com/noah-isme/student-records-api/internal/middleware"
	"github.com/noah-isme/student-records-api/internal/repository"
	"github.com/noah-isme/student-records-api/internal/service"
	"github.com/noah-isme/student-records-api/pkg/cache"
	"github.com/noah-isme/student-records-api/pkg/config"
	"github.com/noah-isme/student-records-api/pkg/database"
	"github.com/noah-isme/student-records-api/pkg/fieldcrypt"
	"github.com/noah-isme/student-records-api/pkg/jobs"
	"github.com/noah-isme/student-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-records-api/pkg/middleware/requestid"
	"github.com/noah-isme/student-records-api/pkg/storage"
)

// @title Student Records API
// @version 1.0.0
// @description CRUD backend for student records with encrypted identity fields
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, list cache disabled", "error", err)
			redisClient = nil
		}
	}

	cipher := fieldcrypt.New(cfg.Crypto.SecretKey)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	uploader, err := newUploader(cfg, r)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media uploader", "error", err)
	}

	cleanupQueue := jobs.NewQueue("media-cleanup", func(ctx context.Context, job jobs.Job) error {
		assetID, _ := job.Payload.(string)
		if assetID == "" {
			return nil
		}
		return uploader.Destroy(ctx, assetID)
	}, jobs.Config{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.MaxRetries,
		RetryDelay: cfg.Cleanup.RetryDelay,
		Logger:     logr,
	})
	cleanupQueue.Start(context.Background())
	defer cleanupQueue.Stop()

	metricsSvc := service.NewMetricsService()
	r.Use(internalmw.Metrics(metricsSvc))

	studentRepo := repository.NewStudentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	studentSvc := service.NewStudentService(studentRepo, cipher, uploader, cacheRepo, cleanupQueue, metricsSvc, logr,
		service.StudentServiceConfig{
			ListCacheTTL:   cfg.Cache.ListTTL,
			MaxUploadBytes: cfg.Media.MaxUploadBytes,
		})
	loginSvc := service.NewLoginService(studentRepo, cipher, validator.New(), logr,
		service.SessionConfig{TokenSecret: cfg.Session.TokenSecret, TokenTTL: cfg.Session.TokenTTL})

	studentHandler := handler.NewStudentHandler(studentSvc)
	loginHandler := handler.NewLoginHandler(loginSvc)

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

	r.POST("/add-student", studentHandler.Add)
	r.PUT("/update-student/:id", studentHandler.Update)
	r.DELETE("/delete-student/:id", studentHandler.Delete)
	r.GET("/get-students", studentHandler.List)
	r.GET("/get-student/:id", studentHandler.Get)
	r.POST("/login", loginHandler.Login)

	if cfg.Exports.Enabled {
		exportHandler := handler.NewExportHandler(service.NewExportService(studentSvc))
		r.GET("/export-students", exportHandler.Roster)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "media_provider", cfg.Media.Provider)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// newUploader selects the media host implementation. Local storage also
// mounts the uploads directory so stored assets stay reachable over HTTP.
func newUploader(cfg *config.Config, r *gin.Engine) (media.Uploader, error) {
	if cfg.Media.Provider == config.MediaProviderCloudinary {
		return media.NewCloudinaryUploader(cfg.Media)
	}
	store, err := storage.NewFileStore(cfg.Media.LocalDir)
	if err != nil {
		return nil, err
	}
	r.Static("/uploads", store.Dir())
	return media.NewLocalUploader(store, cfg.Media.PublicBaseURL), nil
}
