package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"savemate/internal/core"
	"savemate/internal/events"
	"savemate/internal/log"
	"savemate/internal/notify"
)

// AdjustmentPublisher hands adjustment summaries to the report pipeline.
// events.Client implements it; it is optional.
type AdjustmentPublisher interface {
	PublishBudgetAdjustment(ctx context.Context, msg *events.BudgetAdjustmentMessage) error
}

// CpiIndexer rescales budget caps by the latest month-over-month growth of a
// fetched price index. The adjustment is multiplicative: running it twice
// with the same rate compounds, so the scheduled bulk pass dedups per month
// via LastAdjustedAt while the on-demand path applies unconditionally.
type CpiIndexer struct {
	feed     IndexFeed
	budgets  BudgetStore
	users    UserDirectory
	notifier notify.Notifier
	reports  AdjustmentPublisher
	statCode string
	workers  int
	now      func() time.Time
	log      *log.Logger
}

func NewCpiIndexer(feed IndexFeed, budgets BudgetStore, users UserDirectory, notifier notify.Notifier, reports AdjustmentPublisher, statCode string, workers int, logger *log.Logger) *CpiIndexer {
	if workers < 1 {
		workers = 1
	}
	return &CpiIndexer{
		feed:     feed,
		budgets:  budgets,
		users:    users,
		notifier: notifier,
		reports:  reports,
		statCode: statCode,
		workers:  workers,
		now:      time.Now,
		log:      logger.WithComponent("cpi-indexer"),
	}
}

// GrowthSnapshot fetches the trailing twelve months of the index and computes
// the latest month-over-month growth rate. Every failure mode (remote error,
// short series, unparseable values, zero previous value) degrades to a zero
// rate; it never propagates an error to the caller.
func (ix *CpiIndexer) GrowthSnapshot(ctx context.Context) core.CpiGrowthSnapshot {
	month := core.MonthOf(ix.now())
	start := month.Minus(11).Compact()
	end := month.Compact()

	points, err := ix.feed.FetchIndexSeries(ctx, ix.statCode, start, end)
	if err != nil {
		ix.log.ErrorContext(ctx, "Index fetch failed, treating growth rate as zero", "stat_code", ix.statCode, "error", err)
		return core.CpiGrowthSnapshot{}
	}
	if len(points) < 2 {
		ix.log.WarnContext(ctx, "Not enough index data points for growth rate", "found", len(points))
		return core.CpiGrowthSnapshot{}
	}

	latest, previous := points[0], points[1]

	latestValue, err := decimal.NewFromString(strings.TrimSpace(latest.Value))
	if err != nil {
		ix.log.ErrorContext(ctx, "Unparseable latest index value", "time", latest.Time, "value", latest.Value)
		return core.CpiGrowthSnapshot{}
	}
	previousValue, err := decimal.NewFromString(strings.TrimSpace(previous.Value))
	if err != nil {
		ix.log.ErrorContext(ctx, "Unparseable previous index value", "time", previous.Time, "value", previous.Value)
		return core.CpiGrowthSnapshot{}
	}

	snapshot := core.CpiGrowthSnapshot{
		AsOfMonth:     latest.Time,
		PreviousMonth: previous.Time,
		LatestValue:   latestValue,
		PreviousValue: previousValue,
	}

	if previousValue.IsZero() {
		ix.log.WarnContext(ctx, "Previous index value is zero, growth rate undefined", "time", previous.Time)
		return snapshot
	}

	snapshot.GrowthRatePercent = latestValue.Sub(previousValue).
		DivRound(previousValue, 4).
		Mul(decimal.NewFromInt(100)).
		Round(2)

	ix.log.InfoContext(ctx, "Computed index growth rate",
		"as_of", snapshot.AsOfMonth,
		"previous", snapshot.PreviousMonth,
		"rate_percent", snapshot.GrowthRatePercent.String())

	return snapshot
}

// LatestGrowthRate is the fail-soft growth rate: zero on any upstream problem.
func (ix *CpiIndexer) LatestGrowthRate(ctx context.Context) decimal.Decimal {
	return ix.GrowthSnapshot(ctx).GrowthRatePercent
}

// AdjustBudgets rescales one user's current-month caps by the latest growth
// rate and stamps LastAdjustedAt. A zero rate is a no-op. The on-demand path
// applies every invocation; callers wanting once-per-month semantics use the
// scheduled bulk pass instead.
func (ix *CpiIndexer) AdjustBudgets(ctx context.Context, userID string) ([]core.BudgetRecord, error) {
	rate := ix.LatestGrowthRate(ctx)
	if rate.IsZero() {
		ix.log.WarnContext(ctx, "Growth rate is zero or unavailable, no adjustments made", "user_id", userID)
		return nil, nil
	}
	return ix.adjustUserBudgets(ctx, userID, rate, core.MonthOf(ix.now()), false)
}

// adjustUserBudgets applies the multiplicative rescale. With dedupMonthly set
// it leaves budgets already adjusted in month untouched.
func (ix *CpiIndexer) adjustUserBudgets(ctx context.Context, userID string, rate decimal.Decimal, month core.Month, dedupMonthly bool) ([]core.BudgetRecord, error) {
	multiplier := decimal.NewFromInt(1).Add(rate.Shift(-2))

	budgets, err := ix.budgets.ListBudgets(ctx, userID, month.Year, int(month.Mon))
	if err != nil {
		return nil, fmt.Errorf("list budgets for user %s: %w", userID, err)
	}
	if len(budgets) == 0 {
		ix.log.InfoContext(ctx, "User has no budgets for current month", "user_id", userID, "month", month.String())
		return nil, nil
	}

	adjusted := make([]core.BudgetRecord, 0, len(budgets))
	for i := range budgets {
		b := budgets[i]
		if dedupMonthly && b.LastAdjustedAt != nil && month.Contains(*b.LastAdjustedAt) {
			ix.log.InfoContext(ctx, "Budget already adjusted this month, skipping",
				"user_id", userID, "category", b.Category)
			continue
		}

		oldCap := b.TotalCap
		b.TotalCap = oldCap.Mul(multiplier).Round(2)
		adjustedAt := ix.now()
		b.LastAdjustedAt = &adjustedAt

		if err := ix.budgets.SaveBudget(ctx, &b); err != nil {
			return adjusted, fmt.Errorf("save adjusted budget %s/%s: %w", userID, b.Category, err)
		}

		ix.log.InfoContext(ctx, "Adjusted budget cap",
			"user_id", userID,
			"category", b.Category,
			"old_cap", oldCap.String(),
			"new_cap", b.TotalCap.String())

		adjusted = append(adjusted, b)
	}
	return adjusted, nil
}

// AdjustAllEnrolled runs the scheduled bulk pass: every user with automatic
// adjustment enabled gets their current-month caps rescaled once (per-month
// dedup via LastAdjustedAt) and an adjustment summary mail. The growth rate
// is computed a single time for the whole pass.
func (ix *CpiIndexer) AdjustAllEnrolled(ctx context.Context) (RunSummary, error) {
	rate := ix.LatestGrowthRate(ctx)
	if rate.IsZero() {
		ix.log.WarnContext(ctx, "Growth rate is zero or unavailable, skipping bulk adjustment")
		return RunSummary{}, nil
	}

	users, err := ix.users.ListUsers(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list users: %w", err)
	}

	ix.log.InfoContext(ctx, "Starting bulk budget adjustment",
		"users", len(users),
		"rate_percent", rate.String())

	var counts tally
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for _, u := range users {
		u := u
		g.Go(func() error {
			counts.record(ix.adjustEnrolledUser(gctx, u, rate))
			return nil
		})
	}
	g.Wait()

	summary := counts.get()
	ix.log.InfoContext(ctx, "Bulk budget adjustment finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	return summary, nil
}

func (ix *CpiIndexer) adjustEnrolledUser(ctx context.Context, u core.UserProfile, rate decimal.Decimal) unitOutcome {
	if !u.AutoAdjustEnabled {
		return unitSkipped
	}

	// One clock read per user, so the listing and the rescale can never
	// straddle a month boundary mid-pass.
	month := core.MonthOf(ix.now())
	before, err := ix.budgets.ListBudgets(ctx, u.ID, month.Year, int(month.Mon))
	if err != nil {
		ix.log.ErrorContext(ctx, "Failed to list budgets for adjustment", "user_id", u.ID, "error", err)
		return unitFailed
	}
	oldCaps := make(map[string]decimal.Decimal, len(before))
	for _, b := range before {
		oldCaps[b.Category] = b.TotalCap
	}

	adjusted, err := ix.adjustUserBudgets(ctx, u.ID, rate, month, true)
	if err != nil {
		ix.log.ErrorContext(ctx, "Budget adjustment failed for user", "user_id", u.ID, "error", err)
		return unitFailed
	}
	if len(adjusted) == 0 {
		return unitSkipped
	}

	ix.reportAdjustment(ctx, u, rate, oldCaps, adjusted)
	return unitProcessed
}

// reportAdjustment delivers the summary through AMQP when a publisher is
// wired, falling back to direct mail. Report delivery failures never undo or
// fail the adjustment itself.
func (ix *CpiIndexer) reportAdjustment(ctx context.Context, u core.UserProfile, rate decimal.Decimal, oldCaps map[string]decimal.Decimal, adjusted []core.BudgetRecord) {
	if u.Email == "" {
		ix.log.WarnContext(ctx, "Adjusted user has no email, skipping summary", "user_id", u.ID)
		return
	}

	lines := make([]events.AdjustedLine, 0, len(adjusted))
	for _, b := range adjusted {
		lines = append(lines, events.AdjustedLine{
			Category: b.Category,
			OldCap:   oldCaps[b.Category],
			NewCap:   b.TotalCap,
		})
	}

	if ix.reports != nil {
		msg := events.NewBudgetAdjustmentMessage(u.ID, u.Email, u.Name, rate, lines)
		if err := ix.reports.PublishBudgetAdjustment(ctx, msg); err != nil {
			ix.log.ErrorContext(ctx, "Failed to publish adjustment report", "user_id", u.ID, "error", err)
		}
		return
	}

	if ix.notifier == nil {
		return
	}
	changes := make([]notify.BudgetChange, 0, len(lines))
	for _, l := range lines {
		changes = append(changes, notify.BudgetChange{Category: l.Category, OldCap: l.OldCap, NewCap: l.NewCap})
	}
	subject, body := notify.AdjustmentReport(u.Name, rate, changes)
	if err := ix.notifier.SendEmail(ctx, u.Email, subject, body); err != nil {
		ix.log.ErrorContext(ctx, "Failed to send adjustment summary", "user_id", u.ID, "error", err)
	}
}
