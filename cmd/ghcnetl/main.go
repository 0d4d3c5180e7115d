// Command ghcnetl converts a GHCN-Daily station file into a one-row-per-day
// table. With -serve it stays up and converts stations on demand over HTTP.
//
// Usage:
//
//	ghcnetl -station USC00479190 -output weather.csv
//	ghcnetl -input USC00479190.dly -format xlsx
//	ghcnetl -serve
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ghcn-daily-etl/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/ghcn-daily-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ghcn-daily-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ghcn-daily-etl/internal/adapter/noaa"
	"github.com/couchcryptid/ghcn-daily-etl/internal/config"
	"github.com/couchcryptid/ghcn-daily-etl/internal/observability"
	"github.com/couchcryptid/ghcn-daily-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	station := flag.String("station", cfg.Station, "GHCN station id to download")
	input := flag.String("input", "", "local .dly file to convert instead of downloading")
	output := flag.String("output", cfg.OutputPath, "output path (default <station>.<format>)")
	format := flag.String("format", cfg.OutputFormat, "output format: csv or xlsx")
	serve := flag.Bool("serve", false, "serve conversions over HTTP until interrupted")
	flag.Parse()

	stationSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "station" {
			stationSet = true
		}
	})

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher := noaa.NewClient(cfg.BaseURL, cfg.FetchTimeout, metrics, logger)

	var publisher pipeline.RowPublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}
	defer func() {
		if writer == nil {
			return
		}
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	p := pipeline.New(fetcher, publisher, logger, metrics, pipeline.Options{
		WorkDir:          cfg.WorkDir,
		DayCountPolicy:   cfg.DayCountPolicy,
		KeepIntermediate: cfg.KeepIntermediate,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := runServer(ctx, cfg, p, metrics, logger); err != nil {
			logger.Error("server error", "error", err)
			stop()
			os.Exit(1)
		}
		return
	}

	job := pipeline.Job{InputPath: *input, OutputPath: *output, Format: *format}
	if *input == "" || stationSet {
		job.StationID = *station
	}
	if _, err := p.Run(ctx, job); err != nil {
		fmt.Fprintf(os.Stderr, "ghcnetl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, metrics *observability.Metrics, logger *slog.Logger) error {
	var store cache.Store
	ready := []sharedobs.ReadinessChecker{p}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		r := cache.NewRedis(client, cfg.CacheTTL)
		store = r
		ready = append(ready, r)
		logger.Info("redis conversion cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	} else {
		store = cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
		logger.Info("in-memory conversion cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	}

	converter := cache.NewCachedConverter(p, store, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, converter, httpadapter.AllReady(ready...), logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Warm the cache with the configured station; readiness flips once it succeeds.
	go func() {
		if _, err := converter.Convert(ctx, cfg.Station, cfg.OutputFormat); err != nil {
			logger.Error("warm-up conversion failed", "station", cfg.Station, "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
