// streamtest connects to the ticker feed and prints validated batches to the console.
// Nothing is written to Redis or the database.
// Usage: go run ./cmd/streamtest --config configs/ingester.example.yaml
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tickerwatch/ingester/internal/config"
	"github.com/tickerwatch/ingester/internal/connection"
	"github.com/tickerwatch/ingester/internal/model"
	"github.com/tickerwatch/ingester/internal/router"
)

// consolePrinter stands in for the ranking cache.
type consolePrinter struct {
	top     int
	verbose bool
}

func (p consolePrinter) ApplyBatch(ctx context.Context, batch model.SnapshotBatch) error {
	if p.verbose {
		data, _ := json.MarshalIndent(batch.Records, "", "  ")
		fmt.Printf("[BATCH] %s\n", data)
		return nil
	}

	fmt.Printf("[BATCH] received=%s records=%d\n", batch.ReceivedAt.Format(time.RFC3339Nano), batch.Len())
	for i, e := range model.BuildRanking(batch, p.top) {
		fmt.Printf("  %2d. %-14s %s%%\n", i+1, e.Symbol, e.PercentChange.StringFixed(2))
	}
	return nil
}

func main() {
	configPath := flag.String("config", "configs/ingester.example.yaml", "path to config file")
	top := flag.Int("top", 5, "ranking entries printed per batch")
	verbose := flag.Bool("verbose", false, "print full record JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	rtr := router.New(consolePrinter{top: *top, verbose: *verbose}, logger)

	consumer := connection.NewConsumer(connection.ConsumerConfig{
		Client: connection.ClientConfig{
			URL: cfg.Feed.WSURL,
			TLSConfig: &tls.Config{
				MinVersion:         tls.VersionTLS12,
				InsecureSkipVerify: cfg.Feed.TLSInsecureSkipVerify,
			},
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
	}, rtr, logger)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rs := rtr.Stats()
				cs := consumer.Stats()
				logger.Info("stats",
					"state", consumer.State(),
					"frames", cs.Frames,
					"dropped", cs.Dropped,
					"reconnects", cs.Reconnects,
					"decode_errors", rs.DecodeErrors,
					"records_valid", rs.RecordsValid,
					"rejected", rs.Rejected,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "url", cfg.Feed.WSURL)

	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
