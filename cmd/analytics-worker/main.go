// Command analytics-worker runs the scheduled batch jobs: cohort aggregation
// and the overrun check on every tick, and the bulk CPI adjustment on the
// first day of the month.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"savemate/internal/analytics"
	"savemate/internal/config"
	"savemate/internal/ecos"
	"savemate/internal/events"
	applog "savemate/internal/log"
	"savemate/internal/notify"
	"savemate/internal/spending"
	"savemate/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(slog.LevelInfo, "analytics-worker")
	applog.SetDefault(logger)

	logger.Info("Starting analytics-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open relational store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	spendingStore, err := spending.NewStore(cfg.SpendingBackend, cfg.SupabaseURL, cfg.SupabaseKey, cfg.SpendingTable)
	if err != nil {
		logger.Error("Failed to build spending store", "error", err)
		os.Exit(1)
	}

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, 15*time.Second)
	} else {
		logger.Info("SMTP not configured, mail will be logged only")
		notifier = notify.LogSender{}
	}

	// Adjustment summaries go through AMQP to the report-worker when a
	// broker is configured; otherwise the indexer mails them directly.
	var reports analytics.AdjustmentPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, adjustment summaries will be mailed directly", "error", err)
		} else {
			defer amqpClient.Close()
			reports = amqpClient
			logger.Info("AMQP client initialized, adjustment summaries go to report-worker")
		}
	} else {
		logger.Info("AMQP disabled, adjustment summaries will be mailed directly")
	}

	feed := ecos.NewClient(cfg.EcosBaseURL, cfg.EcosAPIKey, cfg.EcosTimeout)

	aggregator := analytics.NewCohortAggregator(repo, spendingStore, repo, cfg.WorkerPoolSize, logger)
	forecaster := analytics.NewOverrunForecaster(repo, repo, spendingStore, repo, notifier, cfg.WorkerPoolSize, logger)
	indexer := analytics.NewCpiIndexer(feed, repo, repo, notifier, reports, cfg.EcosStatCode, cfg.WorkerPoolSize, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Analytics jobs scheduled", "interval", cfg.AnalyticsInterval)

	runOnce(ctx, time.Now(), logger, aggregator, forecaster, indexer)

	ticker := time.NewTicker(cfg.AnalyticsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down analytics-worker", "reason", ctx.Err())
			return
		case tick := <-ticker.C:
			runOnce(ctx, tick, logger, aggregator, forecaster, indexer)
		}
	}
}

// runOnce executes one batch cycle. The jobs are independent: one failing
// never stops the others.
func runOnce(ctx context.Context, now time.Time, logger *applog.Logger, aggregator *analytics.CohortAggregator, forecaster *analytics.OverrunForecaster, indexer *analytics.CpiIndexer) {
	if _, err := aggregator.Run(ctx); err != nil {
		logger.Error("Cohort aggregation run failed", "error", err)
	}

	if _, err := forecaster.Run(ctx); err != nil {
		logger.Error("Overrun check run failed", "error", err)
	}

	if bulkAdjustmentDue(now) {
		if _, err := indexer.AdjustAllEnrolled(ctx); err != nil {
			logger.Error("Bulk CPI adjustment run failed", "error", err)
		}
	}
}

// bulkAdjustmentDue gates the bulk CPI pass to the first day of the month.
// The per-budget LastAdjustedAt guard keeps repeated day-one ticks idempotent.
func bulkAdjustmentDue(now time.Time) bool {
	return now.Day() == 1
}
