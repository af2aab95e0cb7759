package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"savemate/internal/core"
	"savemate/internal/log"
	"savemate/internal/notify"
	"savemate/internal/spending"
)

// OverrunForecaster walks every current-month budget, extrapolates month-end
// spending from day-to-date velocity, and alerts the owning user at most once
// per (user, month, category).
type OverrunForecaster struct {
	budgets  BudgetStore
	users    UserDirectory
	spending spending.Store
	alerts   AlertLedger
	notifier notify.Notifier
	workers  int
	now      func() time.Time
	log      *log.Logger
}

func NewOverrunForecaster(budgets BudgetStore, users UserDirectory, spendingStore spending.Store, alerts AlertLedger, notifier notify.Notifier, workers int, logger *log.Logger) *OverrunForecaster {
	if workers < 1 {
		workers = 1
	}
	return &OverrunForecaster{
		budgets:  budgets,
		users:    users,
		spending: spendingStore,
		alerts:   alerts,
		notifier: notifier,
		workers:  workers,
		now:      time.Now,
		log:      logger.WithComponent("overrun-forecaster"),
	}
}

// ForecastMonthEnd extrapolates total month spending from spending so far.
// The daily average is rounded to two decimals half-up before extrapolating;
// velocity is assumed constant from day one through today.
func ForecastMonthEnd(spent decimal.Decimal, dayOfMonth, daysInMonth int) (dailyAverage, estimatedTotal decimal.Decimal) {
	dailyAverage = spent.DivRound(decimal.NewFromInt(int64(dayOfMonth)), 2)
	remainingDays := decimal.NewFromInt(int64(daysInMonth - dayOfMonth))
	estimatedTotal = spent.Add(dailyAverage.Mul(remainingDays))
	return dailyAverage, estimatedTotal
}

// Run checks all budgets for the current month. Per-budget failures are
// logged and isolated; only the initial budget listing is fatal.
func (f *OverrunForecaster) Run(ctx context.Context) (RunSummary, error) {
	today := f.now()
	month := core.MonthOf(today)
	dayOfMonth := today.Day()
	daysInMonth := month.Days()

	f.log.InfoContext(ctx, "Starting overrun check",
		"month", month.String(),
		"day_of_month", dayOfMonth,
		"days_in_month", daysInMonth)

	budgets, err := f.budgets.ListBudgetsForMonth(ctx, month.Year, int(month.Mon))
	if err != nil {
		return RunSummary{}, fmt.Errorf("list budgets for %s: %w", month, err)
	}

	var counts tally
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, b := range budgets {
		b := b
		g.Go(func() error {
			counts.record(f.checkBudget(gctx, b, month, dayOfMonth, daysInMonth))
			return nil
		})
	}
	g.Wait()

	summary := counts.get()
	f.log.InfoContext(ctx, "Overrun check finished",
		"month", month.String(),
		"budgets", len(budgets),
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	return summary, nil
}

func (f *OverrunForecaster) checkBudget(ctx context.Context, b core.BudgetRecord, month core.Month, dayOfMonth, daysInMonth int) unitOutcome {
	user, err := f.users.FindUser(ctx, b.UserID)
	if err != nil {
		f.log.ErrorContext(ctx, "Failed to resolve budget owner", "user_id", b.UserID, "category", b.Category, "error", err)
		return unitFailed
	}
	if user == nil || !user.AlertsEnabled {
		f.log.InfoContext(ctx, "Alerts disabled for user, skipping", "user_id", b.UserID, "category", b.Category)
		return unitSkipped
	}

	alreadySent, err := f.alerts.ExistsAlertLogEntry(ctx, b.UserID, b.Year, b.Month, b.Category)
	if err != nil {
		f.log.ErrorContext(ctx, "Failed to check alert log", "user_id", b.UserID, "category", b.Category, "error", err)
		return unitFailed
	}
	if alreadySent {
		f.log.InfoContext(ctx, "Alert already sent this month, skipping", "user_id", b.UserID, "category", b.Category)
		return unitSkipped
	}

	records, err := f.spending.ListSpending(ctx, b.UserID, spending.MonthQuery(month, b.Category))
	if err != nil {
		f.log.ErrorContext(ctx, "Failed to load spending for budget", "user_id", b.UserID, "category", b.Category, "error", err)
		return unitFailed
	}

	spent := decimal.Zero
	for _, r := range records {
		spent = spent.Add(r.Amount)
	}
	if spent.IsZero() {
		// Nothing to extrapolate from.
		return unitSkipped
	}

	dailyAverage, estimatedTotal := ForecastMonthEnd(spent, dayOfMonth, daysInMonth)

	f.log.InfoContext(ctx, "Budget forecast",
		"user_id", b.UserID,
		"category", b.Category,
		"current_spending", spent.String(),
		"daily_average", dailyAverage.String(),
		"estimated_total", estimatedTotal.String(),
		"total_cap", b.TotalCap.String())

	if estimatedTotal.Cmp(b.TotalCap) <= 0 {
		return unitProcessed
	}

	return f.dispatchAlert(ctx, *user, b, estimatedTotal)
}

// dispatchAlert sends the overrun mail and, only after a successful send,
// appends the dedup log entry. A failed send leaves no entry so a later run
// may retry; a failed append after a successful send is a logged anomaly,
// not a reason to resend within this run.
func (f *OverrunForecaster) dispatchAlert(ctx context.Context, user core.UserProfile, b core.BudgetRecord, estimatedTotal decimal.Decimal) unitOutcome {
	if user.Email == "" {
		f.log.WarnContext(ctx, "Budget owner has no email, cannot alert", "user_id", user.ID, "category", b.Category)
		return unitSkipped
	}

	subject, body := notify.OverrunAlert(user.Name, b.Month, b.Category, estimatedTotal, b.TotalCap)
	if err := f.notifier.SendEmail(ctx, user.Email, subject, body); err != nil {
		f.log.ErrorContext(ctx, "Failed to send overrun alert", "user_id", user.ID, "category", b.Category, "error", err)
		return unitFailed
	}

	entry := core.AlertLogEntry{
		UserID:   b.UserID,
		Year:     b.Year,
		Month:    b.Month,
		Category: b.Category,
		SentAt:   f.now(),
	}
	if err := f.alerts.AppendAlertLogEntry(ctx, entry); err != nil {
		f.log.ErrorContext(ctx, "Alert sent but log append failed, duplicate possible on next run",
			"user_id", user.ID, "category", b.Category, "error", err)
	}

	f.log.InfoContext(ctx, "Overrun alert sent", "user_id", user.ID, "category", b.Category)
	return unitProcessed
}
