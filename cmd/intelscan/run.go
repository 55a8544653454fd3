package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"intelscan/config"
	inputredis "intelscan/internal/input/redis"
	"intelscan/internal/logger"
	"intelscan/internal/match"
	"intelscan/internal/metrics"
	"intelscan/internal/output/matchclickhouse"
	"intelscan/internal/output/resulthttp"
	"intelscan/internal/output/resultjson"
	"intelscan/internal/pipeline"
	"intelscan/internal/resultstore"
)

type configLoader func() (*config.Config, string, error)

func newRunCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume scan events from Redis and write aggregated results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := load()
			if err != nil {
				return err
			}
			logger.Infof("IntelScan starting")
			if path != "" {
				logger.Infof("Config loaded from: %s", path)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runService(ctx, cfg)
		},
	}
}

func runService(ctx context.Context, cfg *config.Config) error {
	c := cfg.IntelScan

	consumer, err := inputredis.NewConsumer(ctx, inputredis.Config{
		Addr:         c.Input.Redis.Addr,
		Password:     c.Input.Redis.Password,
		DB:           c.Input.Redis.DB,
		Key:          c.Input.Redis.Key,
		BlockTimeout: c.Input.Redis.BlockTimeout,
	})
	if err != nil {
		return fmt.Errorf("create redis consumer: %w", err)
	}
	if n, err := consumer.Backlog(ctx); err == nil {
		logger.Infof("Input: redis list %s (backlog=%d)", consumer.Key(), n)
	}

	writer, err := newResultWriter(c.Output)
	if err != nil {
		consumer.Close()
		return err
	}

	var matchWriter pipeline.MatchWriter
	if c.Matches.Enabled {
		ch := c.Matches.ClickHouse
		w, err := matchclickhouse.NewWriter(matchclickhouse.Config{
			URL:      ch.URL,
			Database: ch.Database,
			Table:    ch.Table,
			Username: ch.Username,
			Password: ch.Password,
			Timeout:  ch.Timeout,
			Headers:  ch.Headers,
		})
		if err != nil {
			consumer.Close()
			writer.Close()
			return fmt.Errorf("create clickhouse match writer: %w", err)
		}
		if c.Matches.CreateTable {
			if err := w.EnsureTable(); err != nil {
				logger.Warnf("Failed to create match table: %v", err)
			}
		}
		matchWriter = w
		logger.Infof("Match output: clickhouse (%s/%s.%s)", ch.URL, ch.Database, ch.Table)
	}

	var store pipeline.ResultStore
	if c.Store.Enabled {
		s, err := resultstore.NewRedisStore(redisStoreConfig(c.Store))
		if err != nil {
			logger.Warnf("Result store disabled: %v", err)
		} else {
			store = s
			logger.Infof("Result store: redis %s (prefix=%s)", c.Store.Addr, c.Store.KeyPrefix)
		}
	}

	if c.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, c.Metrics.Addr); err != nil {
				logger.Errorf("Metrics endpoint failed: %v", err)
			}
		}()
	}

	pipe := pipeline.NewScanPipeline(
		consumer,
		pipeline.NewDetector(match.NewScanner(), c.Pipeline.ExtractGrammar),
		writer,
		matchWriter,
		store,
		pipeline.Options{
			Workers:       c.Pipeline.Workers,
			BatchSize:     c.Pipeline.BatchSize,
			FlushInterval: c.Pipeline.FlushInterval,
		},
	)

	err = pipe.Run(ctx)
	logger.Infof("Shutting down")
	if cerr := pipe.Close(); cerr != nil {
		logger.Errorf("Error closing pipeline: %v", cerr)
	}
	logger.Infof("IntelScan stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newResultWriter(out config.OutputConfig) (pipeline.ResultWriter, error) {
	switch out.Mode {
	case "file":
		w, err := resultjson.NewWriter(out.File.Path)
		if err != nil {
			return nil, fmt.Errorf("create result file writer: %w", err)
		}
		logger.Infof("Output mode: file (%s)", out.File.Path)
		return w, nil
	case "http":
		w, err := resulthttp.NewWriter(resulthttp.Config{
			URL:     out.HTTP.URL,
			Timeout: out.HTTP.Timeout,
			Headers: out.HTTP.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("create result HTTP writer: %w", err)
		}
		logger.Infof("Output mode: http (%s)", out.HTTP.URL)
		return w, nil
	default:
		return nil, fmt.Errorf("unknown output mode: %s", out.Mode)
	}
}

func redisStoreConfig(c config.StoreConfig) resultstore.RedisConfig {
	return resultstore.RedisConfig{
		Addr:      c.Addr,
		Password:  c.Password,
		DB:        c.DB,
		KeyPrefix: c.KeyPrefix,
		TTL:       c.TTL,
	}
}
