// Package main is the entrypoint for the scheduled poll runner. A cron job
// or systemd timer invokes it periodically; it polls every configured source
// once and exits. Polls run concurrently and failures are isolated per
// source, so an unreachable feed never blocks the news poll.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/feeds"
	"modrelay/internal/fetch"
	"modrelay/internal/ingest"
	"modrelay/internal/metrics"
	"modrelay/internal/news"
	"modrelay/internal/store"
	"modrelay/internal/types"
)

// runTimeout bounds a single source poll end to end, including delivery
// backoff sleeps.
const runTimeout = 2 * time.Minute

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("poller exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	typed := &slogAdapter{logger: logger}

	ctx := context.Background()

	kv, closeKV, err := buildKV(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	deliveryMetrics, err := buildMetrics(ctx, cfg, typed)
	if err != nil {
		return err
	}

	discordClient := discord.NewClient(cfg.Discord, typed.With("component", "discord"))
	pollers := buildPollers(cfg, kv, discordClient, deliveryMetrics, typed)
	if len(pollers) == 0 {
		logger.Warn("no poll sources configured, nothing to do")
		return nil
	}

	// Each poll runs in its own goroutine with its own timeout. A failing
	// source logs its error and marks the run failed, but never cancels the
	// other polls.
	var failed atomic.Int32
	var group errgroup.Group
	for name, poller := range pollers {
		group.Go(func() error {
			pollCtx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			result, err := poller.Run(pollCtx)
			if err != nil {
				logger.Error("poll failed", "source", name, "error", err.Error())
				failed.Add(1)
				return nil
			}
			logger.Info("poll finished",
				"source", name,
				"processed", result.Processed,
				"delivered", result.Delivered,
				"errors", len(result.Errors),
			)
			return nil
		})
	}
	_ = group.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d polls failed", n, len(pollers))
	}
	return nil
}

func buildKV(ctx context.Context, cfg *config.Config) (store.KV, func(), error) {
	if cfg.Database.URL.Unmask() == "" {
		return store.NewMemoryKV(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return nil, nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	kv := store.NewPostgresKV(pool)
	if err := kv.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return kv, pool.Close, nil
}

func buildMetrics(ctx context.Context, cfg *config.Config, logger types.Logger) (metrics.DeliveryMetrics, error) {
	if !cfg.Metrics.Enabled {
		return metrics.NewNoopMetrics(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	return metrics.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Metrics.Namespace,
		logger.With("component", "metrics")), nil
}

func buildPollers(
	cfg *config.Config,
	kv store.KV,
	discordClient *discord.Client,
	deliveryMetrics metrics.DeliveryMetrics,
	logger types.Logger,
) map[string]*ingest.Poller {
	pollers := make(map[string]*ingest.Poller)
	state := store.NewProcessedIDStore(kv)

	if cfg.Sources.FeedURL != "" {
		if template, err := feeds.NewTemplate(cfg.Discord); err != nil {
			logger.Error("skipping feed source", "error", err.Error())
		} else {
			client := fetch.NewClient("feed", cfg.Sources.Timeout, fetch.DefaultPolicy(), cfg.Sources.UserAgent)
			delivery := ingest.Delivery(metrics.Instrument(discordClient, deliveryMetrics, "feed", types.RealClock{}))
			if cfg.Discord.FeedThreadName != "" {
				delivery = ingest.NewThreadedDelivery(delivery, kv, "thread:feed",
					cfg.Discord.FeedThreadName, logger.With("source", "feed"))
			}
			pollers["feed"] = ingest.NewPoller(ingest.PollerConfig{
				Source:    feeds.NewSource(cfg.Sources.FeedURL, client, logger.With("source", "feed")),
				Template:  template,
				Delivery:  delivery,
				State:     state,
				StateKey:  "processed:feed",
				MaxPerRun: cfg.Sources.MaxItemsPerRun,
				Logger:    logger.With("source", "feed"),
			})
		}
	}

	if cfg.Sources.NewsURL != "" {
		if template, err := news.NewTemplate(cfg.Discord); err != nil {
			logger.Error("skipping news source", "error", err.Error())
		} else {
			client := fetch.NewClient("news", cfg.Sources.Timeout, fetch.DefaultPolicy(), cfg.Sources.UserAgent)
			pollers["news"] = ingest.NewPoller(ingest.PollerConfig{
				Source:    news.NewSource(cfg.Sources.NewsURL, client, logger.With("source", "news")),
				Template:  template,
				Delivery:  metrics.Instrument(discordClient, deliveryMetrics, "news", types.RealClock{}),
				State:     state,
				StateKey:  "processed:news",
				MaxPerRun: cfg.Sources.MaxItemsPerRun,
				Logger:    logger.With("source", "news"),
			})
		}
	}

	return pollers
}
