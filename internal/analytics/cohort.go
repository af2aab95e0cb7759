package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"savemate/internal/core"
	"savemate/internal/log"
	"savemate/internal/spending"
)

// CohortAggregator produces one CohortAggregate per (gender, age group)
// cohort for the current month. Runs are idempotent: re-running for the same
// month with unchanged inputs replaces the month's set with identical records.
type CohortAggregator struct {
	users    UserDirectory
	spending spending.Store
	store    CohortStore
	workers  int
	now      func() time.Time
	log      *log.Logger
}

func NewCohortAggregator(users UserDirectory, spendingStore spending.Store, store CohortStore, workers int, logger *log.Logger) *CohortAggregator {
	if workers < 1 {
		workers = 1
	}
	return &CohortAggregator{
		users:    users,
		spending: spendingStore,
		store:    store,
		workers:  workers,
		now:      time.Now,
		log:      logger.WithComponent("cohort-aggregator"),
	}
}

type cohortKey struct {
	Gender   string
	AgeGroup string
}

// cohortAccumulator collects per-cohort category totals while users are
// processed concurrently.
type cohortAccumulator struct {
	mu     sync.Mutex
	groups map[cohortKey]*cohortTotals
}

type cohortTotals struct {
	userCount int64
	totals    map[string]decimal.Decimal
}

func newCohortAccumulator() *cohortAccumulator {
	return &cohortAccumulator{groups: make(map[cohortKey]*cohortTotals)}
}

func (a *cohortAccumulator) add(key cohortKey, records []core.SpendingRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	group, ok := a.groups[key]
	if !ok {
		group = &cohortTotals{totals: make(map[string]decimal.Decimal)}
		a.groups[key] = group
	}
	group.userCount++
	for _, r := range records {
		group.totals[r.Category] = group.totals[r.Category].Add(r.Amount)
	}
}

// build turns the raw totals into aggregates: per-category average rounded to
// two decimals, deterministic ids, stable ordering.
func (a *cohortAccumulator) build(month core.Month) []core.CohortAggregate {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]cohortKey, 0, len(a.groups))
	for key := range a.groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Gender != keys[j].Gender {
			return keys[i].Gender < keys[j].Gender
		}
		return keys[i].AgeGroup < keys[j].AgeGroup
	})

	aggregates := make([]core.CohortAggregate, 0, len(keys))
	for _, key := range keys {
		group := a.groups[key]
		count := decimal.NewFromInt(group.userCount)
		averages := make(map[string]decimal.Decimal, len(group.totals))
		for category, total := range group.totals {
			averages[category] = total.DivRound(count, 2)
		}
		aggregates = append(aggregates, core.CohortAggregate{
			ID:               core.AggregateID(month, key.Gender, key.AgeGroup),
			Month:            month,
			Gender:           key.Gender,
			AgeGroup:         key.AgeGroup,
			CategoryAverages: averages,
			UserCount:        group.userCount,
		})
	}
	return aggregates
}

// Run aggregates the current month across all users and atomically replaces
// the month's persisted aggregate set. A single user's bad data or failed
// spending lookup never aborts the run; a persistence failure on the final
// replace does.
func (c *CohortAggregator) Run(ctx context.Context) ([]core.CohortAggregate, error) {
	today := c.now()
	month := core.MonthOf(today)
	c.log.InfoContext(ctx, "Starting cohort aggregation", "month", month.String())

	users, err := c.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	c.log.InfoContext(ctx, "Loaded users for aggregation", "count", len(users))

	acc := newCohortAccumulator()
	var counts tally

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, u := range users {
		u := u
		g.Go(func() error {
			counts.record(c.accumulateUser(gctx, acc, u, month, today))
			return nil
		})
	}
	g.Wait()

	aggregates := acc.build(month)

	if len(aggregates) == 0 {
		// Degenerate run: keep whatever the store already holds for the
		// month rather than wiping it.
		c.log.WarnContext(ctx, "No cohorts produced, leaving stored aggregates untouched", "month", month.String())
	} else {
		if err := c.store.ReplaceCohortAggregatesForMonth(ctx, month, aggregates); err != nil {
			return nil, fmt.Errorf("replace aggregates for %s: %w", month, err)
		}
	}

	summary := counts.get()
	c.log.InfoContext(ctx, "Cohort aggregation finished",
		"month", month.String(),
		"cohorts", len(aggregates),
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	return aggregates, nil
}

func (c *CohortAggregator) accumulateUser(ctx context.Context, acc *cohortAccumulator, u core.UserProfile, month core.Month, today time.Time) unitOutcome {
	if err := u.Validate(); err != nil {
		c.log.WarnContext(ctx, "Skipping user with incomplete profile", "user_id", u.ID, "reason", err)
		return unitSkipped
	}

	age := core.AgeAt(u.BirthDate, today)
	group := core.AgeGroup(age)
	if group == core.AgeGroupUnknown {
		c.log.WarnContext(ctx, "Skipping user with unusable birth date", "user_id", u.ID, "birth_date", u.BirthDate)
		return unitSkipped
	}

	records, err := c.spending.ListSpending(ctx, u.ID, spending.MonthQuery(month, ""))
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to load spending, skipping user", "user_id", u.ID, "error", err)
		return unitFailed
	}
	if len(records) == 0 {
		// Users without spending this month contribute to no cohort.
		return unitSkipped
	}

	acc.add(cohortKey{Gender: u.Gender, AgeGroup: group}, records)
	return unitProcessed
}

// CohortAverage looks up the current month's aggregate for one cohort.
// Returns nil when the cohort has not been aggregated yet.
func (c *CohortAggregator) CohortAverage(ctx context.Context, gender, ageGroup string) (*core.CohortAggregate, error) {
	return c.store.FindCohortAggregate(ctx, core.MonthOf(c.now()), gender, ageGroup)
}
