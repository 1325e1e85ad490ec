package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/chunkrelay/internal/auth"
	"github.com/abduss/chunkrelay/internal/config"
	"github.com/abduss/chunkrelay/internal/logger"
	"github.com/abduss/chunkrelay/internal/metadata"
	"github.com/abduss/chunkrelay/internal/metrics"
	"github.com/abduss/chunkrelay/internal/repohost"
	"github.com/abduss/chunkrelay/internal/server"
	"github.com/abduss/chunkrelay/internal/staging"
	"github.com/abduss/chunkrelay/internal/storage"
	"github.com/abduss/chunkrelay/internal/tracing"
	"github.com/abduss/chunkrelay/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.Init(cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version)
	if err != nil {
		zlog.Fatal("init tracing", zap.Error(err))
	}

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zlog.Fatal("create postgres pool", zap.Error(err))
	}
	defer dbPool.Close()

	metadataRepo := metadata.NewRepository(dbPool)
	if err := metadataRepo.InitSchema(ctx); err != nil {
		zlog.Error("initialize metadata schema", zap.Error(err))
	}

	checks := []server.ReadinessCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return storage.PingPostgres(ctx, dbPool) },
	}}

	area, areaCheck := buildStaging(ctx, cfg, zlog)
	if areaCheck != nil {
		checks = append(checks, *areaCheck)
	}

	gitlabClient, err := repohost.NewGitLabClient(cfg.GitLab.URL, cfg.GitLab.Token)
	if err != nil {
		zlog.Fatal("create gitlab client", zap.Error(err))
	}
	repoService := repohost.NewService(gitlabClient, cfg.GitLab.GroupID, cfg.GitLab.Branch, zlog)

	if cfg.Redis.Enabled() {
		redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zlog.Warn("redis unavailable, repository listing cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			repoService.WithCache(repohost.NewRedisCache(redisClient), cfg.Redis.CacheTTL)
			checks = append(checks, server.ReadinessCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			})
		}
	}

	authService := auth.NewService(cfg.Auth, zlog)
	coordinator := upload.NewCoordinator(area, repoService, metadataRepo, zlog)

	metrics.InitMetrics()
	gin.SetMode(gin.ReleaseMode)

	router := server.NewRouter(server.Dependencies{
		Config:       cfg,
		Logger:       zlog,
		Checks:       checks,
		AuthService:  authService,
		Repositories: repoService,
		Uploads:      coordinator,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zlog.Info("chunk relay API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("staging_backend", cfg.Upload.StagingBackend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zlog.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zlog.Error("tracing shutdown", zap.Error(err))
	}
}

func buildStaging(ctx context.Context, cfg config.Config, zlog *zap.Logger) (staging.Area, *server.ReadinessCheck) {
	if cfg.Upload.StagingBackend != "minio" {
		area, err := staging.NewLocalArea(cfg.Upload.StagingDir, zlog)
		if err != nil {
			zlog.Fatal("create staging directory", zap.String("dir", cfg.Upload.StagingDir), zap.Error(err))
		}
		return area, nil
	}

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		zlog.Fatal("connect minio", zap.Error(err))
	}
	if err := storage.EnsureStagingBucket(ctx, minioClient, cfg.MinIO, zlog); err != nil {
		zlog.Fatal("ensure staging bucket", zap.String("bucket", cfg.MinIO.Bucket), zap.Error(err))
	}

	return staging.NewMinIOArea(minioClient, cfg.MinIO.Bucket, zlog), &server.ReadinessCheck{
		Name: "minio",
		Check: func(ctx context.Context) error {
			_, err := minioClient.BucketExists(ctx, cfg.MinIO.Bucket)
			return err
		},
	}
}
