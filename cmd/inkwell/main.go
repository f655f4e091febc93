package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"inkwell/internal/admintoken"
	"inkwell/internal/app"
	"inkwell/internal/config"
	"inkwell/internal/ratelimit"
	"inkwell/internal/server"
	"inkwell/internal/util"
	"inkwell/pkg/filestore"
	"inkwell/pkg/ocr"
	"inkwell/pkg/storage"
	"inkwell/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var labelStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		labelStore = gormStore
		slog.Info("label store backend", "backend", "postgres")
	} else {
		jsonStore, err := store.NewJSONStore(cfg.LabelsFile)
		if err != nil {
			log.Fatalf("failed to open label store: %v", err)
		}
		labelStore = jsonStore
		slog.Info("label store backend", "backend", "json", "path", cfg.LabelsFile)
	}

	areas, err := filestore.New(cfg.PendingDir, cfg.ApprovedDir)
	if err != nil {
		log.Fatalf("failed to init file areas: %v", err)
	}

	var engine ocr.Engine
	if cfg.OCREnabled {
		httpEngine, err := ocr.NewHTTPEngine(cfg.OCRServiceURL, cfg.OCRLanguage, time.Duration(cfg.OCRTimeoutSeconds)*time.Second)
		if err != nil {
			log.Fatalf("failed to init ocr engine: %v", err)
		}
		engine = httpEngine
		slog.Info("ocr enabled", "url", cfg.OCRServiceURL, "language", cfg.OCRLanguage)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
		objects = minioStore
		slog.Info("training bundle publishing enabled", "bucket", cfg.MinioBucket)
	}

	appCore, err := app.New(app.Config{
		Store:              labelStore,
		Files:              areas,
		OCR:                engine,
		OCRMinConfidence:   cfg.OCRMinConfidence,
		Objects:            objects,
		TrainingDir:        cfg.TrainingDir,
		ReportsDir:         cfg.ReportsDir,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		AllowedExtensions:  cfg.AllowedExtensions,
		MinApprovedSamples: cfg.MinApprovedSamples,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	guard, err := admintoken.New(cfg.AdminToken, cfg.SessionSecret, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("failed to init admin guard: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var limiter server.Limiter
	if cfg.RedisAddr != "" {
		window := time.Duration(cfg.UploadRateWindowMs) * time.Millisecond
		redisLimiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.UploadRateLimit, window)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		limiter = redisLimiter
		slog.Info("upload rate limiting enabled", "limit", cfg.UploadRateLimit, "window", window)
	}

	httpServer, err := server.New(server.Config{
		App:                  appCore,
		Files:                areas,
		Guard:                guard,
		Limiter:              limiter,
		Trusted:              trusted,
		ReviewerUsername:     cfg.ReviewerUsername,
		ReviewerPasswordHash: cfg.ReviewerPasswordHash,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("inkwell server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
