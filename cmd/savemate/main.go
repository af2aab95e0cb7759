// Command savemate is the operational CLI: it triggers the analytics batch
// jobs on demand and inspects their outputs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"savemate/internal/analytics"
	"savemate/internal/config"
	"savemate/internal/core"
	"savemate/internal/ecos"
	"savemate/internal/export"
	applog "savemate/internal/log"
	"savemate/internal/notify"
	"savemate/internal/spending"
	"savemate/internal/storage"
)

const usage = `Usage: savemate <command> [flags]

Commands:
  cohorts          run cohort aggregation for the current month
  cohort           look up one cohort average (-gender, -age)
  overrun          run the budget overrun check once
  budgets          show a user's budgets with live usage (-user)
  cpi-rate         print the latest CPI month-over-month growth rate
  cpi-adjust       apply the CPI adjustment to one user's budgets (-user)
  cpi-adjust-all   run the bulk CPI adjustment over enrolled users
  export-cohorts   append the current month's cohort aggregates to Google Sheets
`

func main() {
	_ = godotenv.Load()

	logger := applog.New(slog.LevelInfo, "cli")
	applog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

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

	feed := ecos.NewClient(cfg.EcosBaseURL, cfg.EcosAPIKey, cfg.EcosTimeout)

	aggregator := analytics.NewCohortAggregator(repo, spendingStore, repo, cfg.WorkerPoolSize, logger)
	forecaster := analytics.NewOverrunForecaster(repo, repo, spendingStore, repo, notifier, cfg.WorkerPoolSize, logger)
	indexer := analytics.NewCpiIndexer(feed, repo, repo, notifier, nil, cfg.EcosStatCode, cfg.WorkerPoolSize, logger)

	ctx := context.Background()

	switch os.Args[1] {
	case "cohorts":
		aggregates, err := aggregator.Run(ctx)
		if err != nil {
			logger.Error("Cohort aggregation failed", "error", err)
			os.Exit(1)
		}
		for _, a := range aggregates {
			fmt.Printf("%s users=%d averages=%v\n", a.ID, a.UserCount, a.CategoryAverages)
		}

	case "cohort":
		fs := flag.NewFlagSet("cohort", flag.ExitOnError)
		gender := fs.String("gender", "", "cohort gender (M or F)")
		age := fs.String("age", "", "cohort age group (10s ... 70+)")
		fs.Parse(os.Args[2:])
		if *gender == "" || *age == "" {
			fs.Usage()
			os.Exit(2)
		}
		a, err := aggregator.CohortAverage(ctx, *gender, *age)
		if err != nil {
			logger.Error("Cohort lookup failed", "error", err)
			os.Exit(1)
		}
		if a == nil {
			fmt.Println("no aggregate for this cohort yet")
			return
		}
		fmt.Printf("%s users=%d averages=%v\n", a.ID, a.UserCount, a.CategoryAverages)

	case "overrun":
		summary, err := forecaster.Run(ctx)
		if err != nil {
			logger.Error("Overrun check failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("processed=%d skipped=%d failed=%d\n", summary.Processed, summary.Skipped, summary.Failed)

	case "budgets":
		fs := flag.NewFlagSet("budgets", flag.ExitOnError)
		user := fs.String("user", "", "user id")
		fs.Parse(os.Args[2:])
		if *user == "" {
			fs.Usage()
			os.Exit(2)
		}
		usages, err := analytics.BudgetsWithUsage(ctx, repo, spendingStore, *user, core.MonthOf(time.Now()))
		if err != nil {
			logger.Error("Budget usage lookup failed", "error", err)
			os.Exit(1)
		}
		for _, u := range usages {
			fmt.Printf("%-15s cap=%s used=%s remaining=%s\n",
				u.Category, u.TotalCap.StringFixed(2), u.Used.StringFixed(2), u.Remaining.StringFixed(2))
		}

	case "cpi-rate":
		snapshot := indexer.GrowthSnapshot(ctx)
		fmt.Printf("as_of=%s previous=%s rate=%s%%\n",
			snapshot.AsOfMonth, snapshot.PreviousMonth, snapshot.GrowthRatePercent.StringFixed(2))

	case "cpi-adjust":
		fs := flag.NewFlagSet("cpi-adjust", flag.ExitOnError)
		user := fs.String("user", "", "user id")
		fs.Parse(os.Args[2:])
		if *user == "" {
			fs.Usage()
			os.Exit(2)
		}
		adjusted, err := indexer.AdjustBudgets(ctx, *user)
		if err != nil {
			logger.Error("CPI adjustment failed", "error", err)
			os.Exit(1)
		}
		for _, b := range adjusted {
			fmt.Printf("%-15s new_cap=%s\n", b.Category, b.TotalCap.StringFixed(2))
		}

	case "cpi-adjust-all":
		summary, err := indexer.AdjustAllEnrolled(ctx)
		if err != nil {
			logger.Error("Bulk CPI adjustment failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("processed=%d skipped=%d failed=%d\n", summary.Processed, summary.Skipped, summary.Failed)

	case "export-cohorts":
		exporter, err := export.NewSheetsExporter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsSheetName)
		if err != nil {
			logger.Error("Failed to build sheets exporter", "error", err)
			os.Exit(1)
		}
		aggregates, err := repo.ListCohortAggregates(ctx, core.MonthOf(time.Now()))
		if err != nil {
			logger.Error("Failed to list aggregates", "error", err)
			os.Exit(1)
		}
		if err := exporter.AppendAggregates(ctx, aggregates); err != nil {
			logger.Error("Export failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Exported cohort aggregates", "count", len(aggregates))

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
