package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"savemate/internal/core"
)

// SQLiteRepository is the relational store behind the analytics engines:
// user profiles, budget caps, the alert log and the cohort aggregates.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	const query = `SELECT user_id, name, email, gender, birth_date, alerts_enabled, auto_adjust_enabled
	FROM users ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) FindUser(ctx context.Context, id string) (*core.UserProfile, error) {
	const query = `SELECT user_id, name, email, gender, birth_date, alerts_enabled, auto_adjust_enabled
	FROM users WHERE user_id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser upserts a profile. Profile writes belong to the account CRUD layer;
// this exists for seeding and operational tooling.
func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.UserProfile) error {
	const query = `INSERT INTO users (user_id, name, email, gender, birth_date, alerts_enabled, auto_adjust_enabled)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		name = excluded.name, email = excluded.email, gender = excluded.gender,
		birth_date = excluded.birth_date, alerts_enabled = excluded.alerts_enabled,
		auto_adjust_enabled = excluded.auto_adjust_enabled`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.Gender, u.BirthDate,
		boolToInt(u.AlertsEnabled), boolToInt(u.AutoAdjustEnabled))
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.UserProfile, error) {
	var u core.UserProfile
	var alerts, autoAdjust int
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Gender, &u.BirthDate, &alerts, &autoAdjust)
	if err != nil {
		return u, err
	}
	u.AlertsEnabled = alerts != 0
	u.AutoAdjustEnabled = autoAdjust != 0
	return u, nil
}

// --- budgets ---

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string, year, month int) ([]core.BudgetRecord, error) {
	const query = `SELECT budget_id, user_id, year, month, category, total_cap, last_adjusted_at
	FROM budgets WHERE user_id = ? AND year = ? AND month = ? ORDER BY category`

	return r.queryBudgets(ctx, query, userID, year, month)
}

// ListBudgetsForMonth returns every user's budgets for one month. The overrun
// forecaster walks this set.
func (r *SQLiteRepository) ListBudgetsForMonth(ctx context.Context, year, month int) ([]core.BudgetRecord, error) {
	const query = `SELECT budget_id, user_id, year, month, category, total_cap, last_adjusted_at
	FROM budgets WHERE year = ? AND month = ? ORDER BY user_id, category`

	return r.queryBudgets(ctx, query, year, month)
}

func (r *SQLiteRepository) queryBudgets(ctx context.Context, query string, args ...any) ([]core.BudgetRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.BudgetRecord
	for rows.Next() {
		var b core.BudgetRecord
		var capStr string
		var adjustedAt sql.NullString
		if err := rows.Scan(&b.ID, &b.UserID, &b.Year, &b.Month, &b.Category, &capStr, &adjustedAt); err != nil {
			return nil, err
		}
		b.TotalCap, err = decimal.NewFromString(capStr)
		if err != nil {
			return nil, fmt.Errorf("budget %d has malformed cap %q: %w", b.ID, capStr, err)
		}
		if adjustedAt.Valid {
			t, err := time.Parse(time.RFC3339, adjustedAt.String)
			if err != nil {
				return nil, fmt.Errorf("budget %d has malformed last_adjusted_at %q: %w", b.ID, adjustedAt.String, err)
			}
			b.LastAdjustedAt = &t
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// SaveBudget upserts by the natural key (user, year, month, category) and
// backfills the row id on insert.
func (r *SQLiteRepository) SaveBudget(ctx context.Context, b *core.BudgetRecord) error {
	var adjustedAt any
	if b.LastAdjustedAt != nil {
		adjustedAt = b.LastAdjustedAt.UTC().Format(time.RFC3339)
	}

	const query = `INSERT INTO budgets (user_id, year, month, category, total_cap, last_adjusted_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, year, month, category) DO UPDATE SET
		total_cap = excluded.total_cap, last_adjusted_at = excluded.last_adjusted_at`

	if _, err := r.db.ExecContext(ctx, query,
		b.UserID, b.Year, b.Month, b.Category, b.TotalCap.String(), adjustedAt); err != nil {
		return fmt.Errorf("save budget %s/%d-%02d/%s: %w", b.UserID, b.Year, b.Month, b.Category, err)
	}

	if b.ID == 0 {
		const idQuery = `SELECT budget_id FROM budgets WHERE user_id = ? AND year = ? AND month = ? AND category = ?`
		if err := r.db.QueryRowContext(ctx, idQuery, b.UserID, b.Year, b.Month, b.Category).Scan(&b.ID); err != nil {
			return fmt.Errorf("resolve budget id: %w", err)
		}
	}
	return nil
}

// --- alert log ---

func (r *SQLiteRepository) ExistsAlertLogEntry(ctx context.Context, userID string, year, month int, category string) (bool, error) {
	const query = `SELECT 1 FROM alert_log WHERE user_id = ? AND year = ? AND month = ? AND category = ? LIMIT 1`

	var one int
	err := r.db.QueryRowContext(ctx, query, userID, year, month, category).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check alert log: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) AppendAlertLogEntry(ctx context.Context, e core.AlertLogEntry) error {
	const query = `INSERT INTO alert_log (user_id, year, month, category, sent_at) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		e.UserID, e.Year, e.Month, e.Category, e.SentAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append alert log entry: %w", err)
	}
	return nil
}

// --- cohort aggregates ---

// ReplaceCohortAggregatesForMonth swaps the month's aggregate set in a single
// transaction so a concurrent reader never observes a half-replaced month.
func (r *SQLiteRepository) ReplaceCohortAggregatesForMonth(ctx context.Context, month core.Month, aggregates []core.CohortAggregate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cohort_aggregates WHERE month = ?`, month.String()); err != nil {
		return fmt.Errorf("delete aggregates for %s: %w", month, err)
	}

	const insert = `INSERT INTO cohort_aggregates (id, month, gender, age_group, category_averages, user_count)
	VALUES (?, ?, ?, ?, ?, ?)`

	for _, a := range aggregates {
		averages, err := marshalAverages(a.CategoryAverages)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert,
			a.ID, a.Month.String(), a.Gender, a.AgeGroup, averages, a.UserCount); err != nil {
			return fmt.Errorf("insert aggregate %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCohortAggregates(ctx context.Context, month core.Month) ([]core.CohortAggregate, error) {
	const query = `SELECT id, month, gender, age_group, category_averages, user_count
	FROM cohort_aggregates WHERE month = ? ORDER BY gender, age_group`

	rows, err := r.db.QueryContext(ctx, query, month.String())
	if err != nil {
		return nil, fmt.Errorf("list cohort aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []core.CohortAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

func (r *SQLiteRepository) FindCohortAggregate(ctx context.Context, month core.Month, gender, ageGroup string) (*core.CohortAggregate, error) {
	const query = `SELECT id, month, gender, age_group, category_averages, user_count
	FROM cohort_aggregates WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, core.AggregateID(month, gender, ageGroup))
	a, err := scanAggregate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAggregate(row rowScanner) (core.CohortAggregate, error) {
	var a core.CohortAggregate
	var month, averages string
	if err := row.Scan(&a.ID, &month, &a.Gender, &a.AgeGroup, &averages, &a.UserCount); err != nil {
		return a, err
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return a, fmt.Errorf("aggregate %s has malformed month %q: %w", a.ID, month, err)
	}
	a.Month = core.MonthOf(t)
	if err := json.Unmarshal([]byte(averages), &a.CategoryAverages); err != nil {
		return a, fmt.Errorf("aggregate %s has malformed averages: %w", a.ID, err)
	}
	return a, nil
}

func marshalAverages(averages map[string]decimal.Decimal) (string, error) {
	data, err := json.Marshal(averages)
	if err != nil {
		return "", fmt.Errorf("marshal category averages: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
