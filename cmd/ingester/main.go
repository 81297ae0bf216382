// Command ingester runs the broker-to-store ingestion workers.
//
// Each worker owns one consumer-group reader and drives one pipeline:
// fetch a batch, validate, drop redelivered duplicates, persist atomically
// together with the partition offset cursor, then acknowledge to the broker.
// SIGINT/SIGTERM stops polling; in-flight batches finish before exit. A
// worker that exhausts its persistence retry budget halts alone and leaves
// the rest running.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/averche/go-chat-admin/internal/broker"
	"github.com/averche/go-chat-admin/internal/config"
	"github.com/averche/go-chat-admin/internal/dedup"
	"github.com/averche/go-chat-admin/internal/ingest"
	"github.com/averche/go-chat-admin/internal/observability"
	"github.com/averche/go-chat-admin/internal/repo"
	"github.com/averche/go-chat-admin/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("component", "ingester").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}
	if err := repo.EnsureIndexes(db); err != nil {
		logger.Fatal().Err(err).Msg("ensure indexes failed")
	}

	// Dead letters go to a topic when one is configured, otherwise to the log.
	var dlq broker.DeadLetterSink = broker.LogDeadLetterSink{Log: logger}
	if cfg.Kafka.DeadLetterTopic != "" {
		sink := broker.NewKafkaDeadLetterSink(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic, logger)
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn().Err(err).Msg("dead-letter writer close failed")
			}
		}()
		dlq = sink
	}

	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Int("workers", cfg.Ingest.Workers).
		Msg("starting ingestion")

	var wg sync.WaitGroup
	for i := 0; i < cfg.Ingest.Workers; i++ {
		workerLog := logger.With().Int("worker", i).Logger()

		consumer := broker.NewKafkaConsumer(broker.KafkaConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			GroupID:     cfg.Kafka.GroupID,
			PollTimeout: cfg.Kafka.PollTimeout,
		})

		p := ingest.New(db, consumer, dedup.New(db, cfg.Ingest.DedupRetention), dlq, ingest.Config{
			MaxBatchSize: cfg.Ingest.MaxBatchSize,
			RetryBudget:  cfg.Ingest.RetryBudget,
			RetryBackoff: cfg.Ingest.RetryBackoff,
		}, workerLog)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if err := consumer.Close(); err != nil {
					workerLog.Warn().Err(err).Msg("consumer close failed")
				}
			}()
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				// The worker already logged the halt; the process keeps
				// serving its siblings.
				workerLog.Error().Err(err).Msg("worker exited abnormally")
			}
		}()
	}

	wg.Wait()
	logger.Info().Msg("ingestion stopped")
}
