// Package main is the entrypoint for the relay's HTTP surface: inbound
// GitHub and mail webhooks plus manual poll triggers. All business logic
// lives in internal/; this file handles dependency wiring and the server
// lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"modrelay/internal/api"
	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/feeds"
	"modrelay/internal/fetch"
	"modrelay/internal/github"
	"modrelay/internal/ingest"
	"modrelay/internal/mail"
	"modrelay/internal/metrics"
	"modrelay/internal/news"
	"modrelay/internal/store"
	"modrelay/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies the first three methods but With returns
// *slog.Logger, not types.Logger, so a thin adapter is needed.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Compile-time assertion that slogAdapter implements types.Logger.
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
		slog.Error("api exited with error", "error", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	pollers, err := buildPollers(cfg, kv, discordClient, deliveryMetrics, typed)
	if err != nil {
		return err
	}

	githubFetch := fetch.NewClient("github-api", cfg.Sources.Timeout, fetch.DefaultPolicy(), cfg.Sources.UserAgent)
	artifacts := github.NewArtifactClient(githubFetch, cfg.GitHub.APIToken, cfg.GitHub.APIBaseURL,
		typed.With("component", "artifacts"))

	mailTemplate, err := mail.NewTemplate(cfg.Discord)
	if err != nil {
		return fmt.Errorf("building mail template: %w", err)
	}

	server := api.NewServer(cfg, api.Dependencies{
		Delivery:     discordClient,
		Renderer:     github.NewRenderer(cfg.Discord),
		Artifacts:    artifacts,
		MailTemplate: mailTemplate,
		Pollers:      pollers,
		Metrics:      deliveryMetrics,
		Logger:       typed.With("component", "api"),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", httpServer.Addr, "environment", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildKV selects the state store: Postgres when DATABASE_URL is set, the
// in-memory store otherwise (local runs, where dedup state is allowed to
// reset with the process).
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

// buildPollers registers one ingestion poller per configured source URL.
func buildPollers(
	cfg *config.Config,
	kv store.KV,
	discordClient *discord.Client,
	deliveryMetrics metrics.DeliveryMetrics,
	logger types.Logger,
) (map[string]api.PollRunner, error) {
	pollers := make(map[string]api.PollRunner)
	state := store.NewProcessedIDStore(kv)

	if cfg.Sources.FeedURL != "" {
		client := fetch.NewClient("feed", cfg.Sources.Timeout, fetch.DefaultPolicy(), cfg.Sources.UserAgent)
		template, err := feeds.NewTemplate(cfg.Discord)
		if err != nil {
			return nil, fmt.Errorf("building feed template: %w", err)
		}
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

	if cfg.Sources.NewsURL != "" {
		client := fetch.NewClient("news", cfg.Sources.Timeout, fetch.DefaultPolicy(), cfg.Sources.UserAgent)
		template, err := news.NewTemplate(cfg.Discord)
		if err != nil {
			return nil, fmt.Errorf("building news template: %w", err)
		}
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

	return pollers, nil
}
