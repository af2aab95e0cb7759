// Package spending gives the analytics engines read access to the raw
// per-transaction spending records. Records are produced by the CRUD layer
// and are never mutated here.
package spending

import (
	"context"
	"time"

	"savemate/internal/core"
)

// Query selects records in the half-open interval [From, To). Category is an
// optional exact-match filter.
type Query struct {
	From     time.Time
	To       time.Time
	Category string
}

// MonthQuery covers one calendar month.
func MonthQuery(m core.Month, category string) Query {
	return Query{From: m.Start(), To: m.NextStart(), Category: category}
}

type Store interface {
	ListSpending(ctx context.Context, userID string, q Query) ([]core.SpendingRecord, error)
}
