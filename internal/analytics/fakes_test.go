package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"savemate/internal/core"
	"savemate/internal/log"
	"savemate/internal/spending"
)

func testLogger() *log.Logger {
	return log.New(slog.LevelError, "test")
}

type fakeDirectory struct {
	users []core.UserProfile
	err   error
}

func (f *fakeDirectory) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]core.UserProfile, len(f.users))
	copy(out, f.users)
	return out, nil
}

func (f *fakeDirectory) FindUser(ctx context.Context, id string) (*core.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

type fakeBudgets struct {
	mu      sync.Mutex
	budgets []core.BudgetRecord
	saveErr error
	saves   int
	nextID  int64
}

func (f *fakeBudgets) ListBudgets(ctx context.Context, userID string, year, month int) ([]core.BudgetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.BudgetRecord
	for _, b := range f.budgets {
		if b.UserID == userID && b.Year == year && b.Month == month {
			out = append(out, cloneBudget(b))
		}
	}
	return out, nil
}

func (f *fakeBudgets) ListBudgetsForMonth(ctx context.Context, year, month int) ([]core.BudgetRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.BudgetRecord
	for _, b := range f.budgets {
		if b.Year == year && b.Month == month {
			out = append(out, cloneBudget(b))
		}
	}
	return out, nil
}

func (f *fakeBudgets) SaveBudget(ctx context.Context, b *core.BudgetRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	for i := range f.budgets {
		e := &f.budgets[i]
		if e.UserID == b.UserID && e.Year == b.Year && e.Month == b.Month && e.Category == b.Category {
			b.ID = e.ID
			f.budgets[i] = cloneBudget(*b)
			return nil
		}
	}
	f.nextID++
	b.ID = f.nextID
	f.budgets = append(f.budgets, cloneBudget(*b))
	return nil
}

// find returns the stored record, not a copy. Test-side inspection only.
func (f *fakeBudgets) find(userID, category string) *core.BudgetRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.budgets {
		if f.budgets[i].UserID == userID && f.budgets[i].Category == category {
			return &f.budgets[i]
		}
	}
	return nil
}

func cloneBudget(b core.BudgetRecord) core.BudgetRecord {
	if b.LastAdjustedAt != nil {
		t := *b.LastAdjustedAt
		b.LastAdjustedAt = &t
	}
	return b
}

type fakeAlerts struct {
	mu        sync.Mutex
	entries   []core.AlertLogEntry
	existsErr error
	appendErr error
}

func (f *fakeAlerts) ExistsAlertLogEntry(ctx context.Context, userID string, year, month int, category string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, e := range f.entries {
		if e.UserID == userID && e.Year == year && e.Month == month && e.Category == category {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAlerts) AppendAlertLogEntry(ctx context.Context, e core.AlertLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeCohorts struct {
	mu           sync.Mutex
	byMonth      map[string][]core.CohortAggregate
	replaceErr   error
	replaceCalls int
}

func newFakeCohorts() *fakeCohorts {
	return &fakeCohorts{byMonth: make(map[string][]core.CohortAggregate)}
}

func (f *fakeCohorts) ReplaceCohortAggregatesForMonth(ctx context.Context, month core.Month, aggregates []core.CohortAggregate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaceCalls++
	stored := make([]core.CohortAggregate, len(aggregates))
	copy(stored, aggregates)
	f.byMonth[month.String()] = stored
	return nil
}

func (f *fakeCohorts) ListCohortAggregates(ctx context.Context, month core.Month) ([]core.CohortAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byMonth[month.String()], nil
}

func (f *fakeCohorts) FindCohortAggregate(ctx context.Context, month core.Month, gender, ageGroup string) (*core.CohortAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byMonth[month.String()] {
		if a.Gender == gender && a.AgeGroup == ageGroup {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

type fakeFeed struct {
	points    []core.IndexPoint
	err       error
	lastStat  string
	lastStart string
	lastEnd   string
	calls     int
}

func (f *fakeFeed) FetchIndexSeries(ctx context.Context, statCode, start, end string) ([]core.IndexPoint, error) {
	f.calls++
	f.lastStat, f.lastStart, f.lastEnd = statCode, start, end
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// brokenSpending fails lookups for the listed users and delegates the rest.
type brokenSpending struct {
	inner   spending.Store
	failFor map[string]bool
}

func (b *brokenSpending) ListSpending(ctx context.Context, userID string, q spending.Query) ([]core.SpendingRecord, error) {
	if b.failFor[userID] {
		return nil, errors.New("spending backend unavailable")
	}
	return b.inner.ListSpending(ctx, userID, q)
}
