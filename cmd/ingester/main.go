package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/tickerwatch/ingester/internal/api"
	"github.com/tickerwatch/ingester/internal/cache"
	"github.com/tickerwatch/ingester/internal/config"
	"github.com/tickerwatch/ingester/internal/connection"
	"github.com/tickerwatch/ingester/internal/database"
	"github.com/tickerwatch/ingester/internal/metrics"
	"github.com/tickerwatch/ingester/internal/poller"
	"github.com/tickerwatch/ingester/internal/router"
	"github.com/tickerwatch/ingester/internal/version"
	"github.com/tickerwatch/ingester/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/ingester.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	printSchema := flag.Bool("schema", false, "print the history table DDL and exit")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		return
	}

	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadDotEnv(*envPath); err != nil {
		bootLogger.Error("failed to load env file", "path", *envPath, "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *printSchema {
		fmt.Println(writer.CreateTableSQL(cfg.Writers.HourlyTable))
		fmt.Println(writer.CreateTableSQL(cfg.Writers.DailyTable))
		fmt.Println(writer.CombinedViewSQL(cfg.Writers.CombinedView, cfg.Writers.HourlyTable, cfg.Writers.DailyTable))
		return
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		bootLogger.Error("invalid logging config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting ingester",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.Feed.TLSInsecureSkipVerify,
	}
	if tlsCfg.InsecureSkipVerify {
		logger.Warn("tls certificate verification disabled")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	err = rdb.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		logger.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.Database.Timescale, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithTLSConfig(tlsCfg),
	)

	snapshots := cache.New(cache.Config{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TopN:      cfg.Redis.TopN,
	}, rdb, logger)

	hourlyWriter := writer.NewHistoryWriter(writer.WriterConfig{
		Table:     cfg.Writers.HourlyTable,
		BatchSize: cfg.Writers.BatchSize,
	}, pool, logger)
	dailyWriter := writer.NewHistoryWriter(writer.WriterConfig{
		Table:     cfg.Writers.DailyTable,
		BatchSize: cfg.Writers.BatchSize,
	}, pool, logger)

	rt := router.New(snapshots, logger)

	consumer := connection.NewConsumer(connection.ConsumerConfig{
		Client: connection.ClientConfig{
			URL:          cfg.Feed.WSURL,
			TLSConfig:    tlsCfg,
			PingTimeout:  cfg.Feed.PingTimeout,
			WriteTimeout: cfg.Feed.WriteTimeout,
			BufferSize:   cfg.Feed.BufferSize,
		},
		Backoff: connection.Backoff{
			Base:   cfg.Feed.ReconnectBaseDelay,
			Max:    cfg.Feed.ReconnectMaxDelay,
			Factor: cfg.Feed.ReconnectFactor,
			Jitter: cfg.Feed.ReconnectJitter,
		},
	}, rt, logger)

	rollover := poller.NewRolloverDetector(poller.RolloverConfig{
		CheckInterval: cfg.Rollover.CheckInterval,
		Timeout:       cfg.Poller.Timeout,
		Intervals: poller.IntervalPolicy{
			NearWindow:   cfg.Rollover.NearWindow,
			NearInterval: cfg.Rollover.NearInterval,
			MidWindow:    cfg.Rollover.MidWindow,
			MidInterval:  cfg.Rollover.MidInterval,
			BaseInterval: cfg.Rollover.BaseInterval,
		},
	}, apiClient, apiClient, dailyWriter, snapshots, logger)

	src := metrics.Sources{
		ConsumerState: consumer.State,
		Consumer:      consumer.Stats,
		Router:        rt.Stats,
		Cache:         snapshots.Stats,
		REST:          apiClient.Stats,
		Writers: map[string]func() writer.WriterMetrics{
			hourlyWriter.Table(): hourlyWriter.Stats,
			dailyWriter.Table():  dailyWriter.Stats,
		},
		Pollers: map[string]func() poller.Stats{
			"rollover": rollover.Stats,
		},
	}

	var hourly *poller.HourlyPoller
	if cfg.Poller.HourlyPollingEnabled() {
		hourly = poller.NewHourlyPoller(poller.HourlyConfig{Timeout: cfg.Poller.Timeout}, apiClient, hourlyWriter, logger)
		src.Pollers["hourly"] = hourly.Stats
	} else {
		logger.Info("hourly polling disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/health", createHealthHandler(healthDeps{
		db:       pool,
		cache:    snapshots,
		stream:   consumer.State,
		rollover: rollover.State,
	}))
	mux.Handle(cfg.Metrics.Path, metrics.Handler(metrics.NewRegistry(src)))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := rollover.Start(ctx); err != nil {
		logger.Error("failed to start rollover detector", "error", err)
		os.Exit(1)
	}
	if hourly != nil {
		if err := hourly.Start(ctx); err != nil {
			logger.Error("failed to start hourly poller", "error", err)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("ingester running",
		"ws_url", cfg.Feed.WSURL,
		"rest_url", cfg.API.RestURL,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	runErr := g.Wait()
	cancel()

	logger.Info("shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if hourly != nil {
		if err := hourly.Stop(stopCtx); err != nil {
			logger.Warn("hourly poller stop", "error", err)
		}
	}
	if err := rollover.Stop(stopCtx); err != nil {
		logger.Warn("rollover detector stop", "error", err)
	}

	if runErr != nil {
		logger.Error("ingester stopped with error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("ingester stopped")
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", cfg.Format)
	}
}
