package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/factwise/schema-mapper/internal/api"
	"github.com/factwise/schema-mapper/internal/config"
	"github.com/factwise/schema-mapper/internal/matching"
	"github.com/factwise/schema-mapper/internal/pkg/logger"
	"github.com/factwise/schema-mapper/internal/service/mapping"
	"github.com/factwise/schema-mapper/internal/storage"
	"github.com/factwise/schema-mapper/internal/tabular"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	var cache *mapping.PreviewCache
	if cfg.Cache.Enabled && cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPass,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unavailable, preview cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			cache = mapping.NewPreviewCache(client, cfg.Cache.TTL())
			logger.Info("preview cache enabled", "addr", cfg.Cache.RedisAddr)
		}
	}

	svc := mapping.NewService(mapping.Deps{
		Objects:            store,
		Sessions:           store,
		Templates:          store,
		Extractor:          tabular.NewExtractor(cfg.Extraction.SampleRows),
		Matcher:            matching.NewMatcher(cfg.Matching.MinConfidence),
		Cache:              cache,
		TemplateFuzzyRatio: cfg.Matching.TemplateFuzzyRatio,
	})

	server := api.NewServer(cfg.Server, svc)
	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "storage", cfg.Storage.Type)
		errCh <- server.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
