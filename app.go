package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cdash/internal/api"
	"cdash/internal/config"
	"cdash/internal/dashboard"
	"cdash/internal/querycache"
	"cdash/internal/storage"
	"cdash/internal/summary"
	"cdash/internal/telegram"
)

// App holds the wired components shared by every command.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Client   *api.Client
	Cache    *querycache.Cache
	Ledger   *storage.Storage
	Service  *dashboard.Service
	Telegram *telegram.Client
}

// NewApp builds the API client, cache, ledger and dashboard service from
// cfg. Telegram is nil when not configured.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	client, err := api.NewClient(api.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout,
		MaxConns:  cfg.HTTPMaxConns,
		RateLimit: cfg.APIRateLimit,
		Logger:    logger.Named("api"),
	})
	if err != nil {
		return nil, err
	}

	retries := cfg.CacheRetryCount
	if retries == 0 {
		retries = querycache.NoRetry
	}
	cache := querycache.New(querycache.Options{
		StaleTime:  cfg.CacheStaleTime,
		Retries:    retries,
		RetryDelay: cfg.CacheRetryDelay,
		Logger:     logger.Named("cache"),
	})

	ledger, err := storage.New(cfg.LedgerFile, logger.Named("ledger"))
	if err != nil {
		cache.Close()
		return nil, err
	}

	svc := dashboard.NewService(client, cache, dashboard.Settings{
		ListLimit:    cfg.ListLimit,
		TimelineDays: cfg.TimelineDays,
	}, ledger, logger.Named("dashboard"))

	tg := telegram.NewClient(telegram.Options{
		BotToken:  cfg.TelegramBotToken,
		ChatID:    cfg.TelegramChatID,
		DebugMode: cfg.DebugMode,
		Logger:    logger.Named("telegram"),
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Cache:    cache,
		Ledger:   ledger,
		Service:  svc,
		Telegram: tg,
	}, nil
}

// Close stops the cache's background fetches.
func (a *App) Close() {
	a.Cache.Close()
}

// Digest builds the weekly digest from the dashboard service.
func (a *App) Digest(ctx context.Context) (summary.Digest, error) {
	return summary.BuildDigest(ctx, a.Service, time.Now(), a.Logger.Named("digest"))
}

// Refresh re-warms every overview panel and returns how many failed. A
// refresh where every panel failed is reported as an error.
func (a *App) Refresh(ctx context.Context) (int, error) {
	o, err := a.Service.Overview(ctx)
	if err != nil {
		return 0, err
	}
	if o.AllFailed() {
		return o.Failed(), fmt.Errorf("all overview panels failed: %s", o.Stats.Error)
	}
	return o.Failed(), nil
}
