package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingGender    = errors.New("missing gender")
	ErrMissingBirthDate = errors.New("missing birth date")
)

type (
	// UserProfile is the read-only view of a user the analytics engines need.
	// Profiles are owned by the account CRUD layer; the engines never write them.
	UserProfile struct {
		ID                string
		Name              string
		Email             string
		Gender            string // "M" or "F"
		BirthDate         string // YYYY-MM-DD
		AlertsEnabled     bool
		AutoAdjustEnabled bool
	}

	// SpendingRecord is a single immutable spending transaction.
	SpendingRecord struct {
		ID          string
		UserID      string
		Date        time.Time
		Category    string
		Amount      decimal.Decimal
		Description string
	}

	// BudgetRecord is one cap per (user, year, month, category).
	// LastAdjustedAt is set only by the CPI indexer.
	BudgetRecord struct {
		ID             int64
		UserID         string
		Year           int
		Month          int
		Category       string
		TotalCap       decimal.Decimal
		LastAdjustedAt *time.Time
	}

	// BudgetUsage decorates a budget with spending-derived figures.
	// Used and Remaining are always recomputed, never persisted.
	BudgetUsage struct {
		BudgetRecord
		Used      decimal.Decimal
		Remaining decimal.Decimal
	}

	// AlertLogEntry records a delivered overrun alert. At most one entry may
	// exist per (user, year, month, category); this is the only mechanism
	// preventing a second alert for the same budget line in the same month.
	AlertLogEntry struct {
		UserID   string
		Year     int
		Month    int
		Category string
		SentAt   time.Time
	}

	// CohortAggregate holds the average category spending of one
	// (gender, age group) cohort for one month.
	CohortAggregate struct {
		ID               string
		Month            Month
		Gender           string
		AgeGroup         string
		CategoryAverages map[string]decimal.Decimal
		UserCount        int64
	}

	// IndexPoint is one monthly observation of a macroeconomic index series.
	// Value stays a raw string until the growth-rate computation parses it,
	// so a single malformed row cannot poison the whole fetch.
	IndexPoint struct {
		Time  string // YYYYMM
		Value string
	}

	// CpiGrowthSnapshot is the transient result of one growth-rate computation.
	CpiGrowthSnapshot struct {
		AsOfMonth         string
		PreviousMonth     string
		LatestValue       decimal.Decimal
		PreviousValue     decimal.Decimal
		GrowthRatePercent decimal.Decimal
	}
)

// AggregateID derives the deterministic identity of a cohort aggregate.
// Re-aggregating a month therefore targets the same logical records.
func AggregateID(m Month, gender, ageGroup string) string {
	return fmt.Sprintf("%s_%s_%s", m, gender, ageGroup)
}

// WithUsage computes the derived used/remaining figures for a budget from the
// sum of matching spending amounts.
func (b BudgetRecord) WithUsage(used decimal.Decimal) BudgetUsage {
	return BudgetUsage{
		BudgetRecord: b,
		Used:         used,
		Remaining:    b.TotalCap.Sub(used),
	}
}

func (u UserProfile) Validate() error {
	if u.Gender == "" {
		return ErrMissingGender
	}
	if u.BirthDate == "" {
		return ErrMissingBirthDate
	}
	return nil
}
