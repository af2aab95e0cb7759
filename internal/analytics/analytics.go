// Package analytics hosts the three scheduled batch engines: cohort spending
// aggregation, budget overrun forecasting with alert dispatch, and CPI budget
// indexing. They share one shape: periodic execution, per-user failure
// isolation, and idempotent re-computation of derived records.
package analytics

import (
	"context"
	"sync"

	"savemate/internal/core"
)

// UserDirectory is the read-only source of user profiles.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]core.UserProfile, error)
	FindUser(ctx context.Context, id string) (*core.UserProfile, error)
}

// BudgetStore reads and writes budget caps.
type BudgetStore interface {
	ListBudgets(ctx context.Context, userID string, year, month int) ([]core.BudgetRecord, error)
	ListBudgetsForMonth(ctx context.Context, year, month int) ([]core.BudgetRecord, error)
	SaveBudget(ctx context.Context, b *core.BudgetRecord) error
}

// AlertLedger is the append-only record backing at-most-once alert delivery.
type AlertLedger interface {
	ExistsAlertLogEntry(ctx context.Context, userID string, year, month int, category string) (bool, error)
	AppendAlertLogEntry(ctx context.Context, e core.AlertLogEntry) error
}

// CohortStore persists the monthly cohort aggregates.
type CohortStore interface {
	ReplaceCohortAggregatesForMonth(ctx context.Context, month core.Month, aggregates []core.CohortAggregate) error
	ListCohortAggregates(ctx context.Context, month core.Month) ([]core.CohortAggregate, error)
	FindCohortAggregate(ctx context.Context, month core.Month, gender, ageGroup string) (*core.CohortAggregate, error)
}

// IndexFeed fetches a macroeconomic time series. Remote; may fail or time out.
type IndexFeed interface {
	FetchIndexSeries(ctx context.Context, statCode, start, end string) ([]core.IndexPoint, error)
}

// RunSummary is the per-run operator report: units that completed, units
// skipped by design, and units that failed and were isolated.
type RunSummary struct {
	Processed int
	Skipped   int
	Failed    int
}

type unitOutcome int

const (
	unitProcessed unitOutcome = iota
	unitSkipped
	unitFailed
)

// tally accumulates unit outcomes from concurrent workers.
type tally struct {
	mu      sync.Mutex
	summary RunSummary
}

func (t *tally) record(o unitOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch o {
	case unitProcessed:
		t.summary.Processed++
	case unitSkipped:
		t.summary.Skipped++
	case unitFailed:
		t.summary.Failed++
	}
}

func (t *tally) get() RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}
