// Command report-worker consumes budget adjustment messages from AMQP and
// mails each user their adjustment summary.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"savemate/internal/config"
	"savemate/internal/events"
	applog "savemate/internal/log"
	"savemate/internal/notify"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(slog.LevelInfo, "report-worker")
	applog.SetDefault(logger)

	logger.Info("Starting report-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the report-worker")
		os.Exit(1)
	}

	amqpClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, 15*time.Second)
	} else {
		logger.Info("SMTP not configured, summaries will be logged only")
		notifier = notify.LogSender{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := func(msg *events.BudgetAdjustmentMessage) error {
		changes := make([]notify.BudgetChange, 0, len(msg.Lines))
		for _, l := range msg.Lines {
			changes = append(changes, notify.BudgetChange{
				Category: l.Category,
				OldCap:   l.OldCap,
				NewCap:   l.NewCap,
			})
		}
		subject, body := notify.AdjustmentReport(msg.Name, msg.GrowthRatePercent, changes)
		return notifier.SendEmail(ctx, msg.Email, subject, body)
	}

	if err := amqpClient.ConsumeBudgetAdjustments(ctx, handler); err != nil && err != context.Canceled {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutting down report-worker")
}
