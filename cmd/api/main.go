package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldCV/internal/api"
	"fieldCV/internal/auth"
	"fieldCV/internal/config"
	"fieldCV/internal/database"
	"fieldCV/internal/upload"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("api bootstrapped",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database migrated")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr(),
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	logger.Info("redis connection ready")

	authService, err := auth.NewAuthServiceFromFiles(
		cfg.JWT.PrivateKeyPath,
		cfg.JWT.PublicKeyPath,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
	)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	uploadService := upload.NewService(
		cfg.Upload.Dir,
		cfg.Upload.SiteURL,
		cfg.Upload.MaxFileSize,
		cfg.Upload.AllowedTypes,
		cfg.Upload.ClamdAddr,
		logger,
	)

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, cfg, db, authService, redisClient, uploadService, logger)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
