package analytics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"savemate/internal/core"
	"savemate/internal/spending"
)

func TestForecastMonthEnd(t *testing.T) {
	cases := []struct {
		spent       string
		day, days   int
		wantDaily   string
		wantTotal   string
		description string
	}{
		{"300", 10, 30, "30", "900", "even velocity"},
		{"100", 3, 31, "33.33", "1033.24", "rounded daily average"},
		{"50", 30, 30, "1.67", "50", "last day of month"},
		{"0.05", 10, 30, "0.01", "0.25", "tiny spending rounds half-up"},
	}
	for _, tc := range cases {
		daily, total := ForecastMonthEnd(decimal.RequireFromString(tc.spent), tc.day, tc.days)
		if daily.String() != tc.wantDaily {
			t.Errorf("%s: daily = %s, want %s", tc.description, daily, tc.wantDaily)
		}
		if total.String() != tc.wantTotal {
			t.Errorf("%s: total = %s, want %s", tc.description, total, tc.wantTotal)
		}
	}
}

func budget(userID, category, cap string) core.BudgetRecord {
	return core.BudgetRecord{
		UserID:   userID,
		Year:     2025,
		Month:    6,
		Category: category,
		TotalCap: decimal.RequireFromString(cap),
	}
}

type overrunFixture struct {
	forecaster *OverrunForecaster
	budgets    *fakeBudgets
	alerts     *fakeAlerts
	notifier   *fakeNotifier
	spending   *spending.MemoryStore
}

func newOverrunFixture(users []core.UserProfile, budgets []core.BudgetRecord) *overrunFixture {
	fx := &overrunFixture{
		budgets:  &fakeBudgets{budgets: budgets},
		alerts:   &fakeAlerts{},
		notifier: &fakeNotifier{},
		spending: spending.NewMemoryStore(),
	}
	dir := &fakeDirectory{users: users}
	fx.forecaster = NewOverrunForecaster(fx.budgets, dir, fx.spending, fx.alerts, fx.notifier, 4, testLogger())
	fx.forecaster.now = func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) }
	return fx
}

func TestOverrunForecasterSendsAlert(t *testing.T) {
	fx := newOverrunFixture(
		[]core.UserProfile{{ID: "u1", Name: "Kim", Email: "kim@example.com", AlertsEnabled: true}},
		[]core.BudgetRecord{budget("u1", "food", "800")},
	)
	addSpending(fx.spending, "u1", spendingOn(3, "food", "120"), spendingOn(7, "food", "180"))

	summary, err := fx.forecaster.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if fx.notifier.count() != 1 {
		t.Fatalf("sent %d mails, want 1", fx.notifier.count())
	}
	mail := fx.notifier.sent[0]
	if mail.To != "kim@example.com" {
		t.Errorf("mail to %q", mail.To)
	}
	if !strings.Contains(mail.Body, "900") || !strings.Contains(mail.Body, "800") {
		t.Errorf("mail body missing forecast figures: %q", mail.Body)
	}
	if fx.alerts.count() != 1 {
		t.Errorf("alert log entries = %d, want 1", fx.alerts.count())
	}
}

func TestOverrunForecasterEstimateWithinCapIsQuiet(t *testing.T) {
	// Estimated total 900 equals the cap exactly: no alert.
	fx := newOverrunFixture(
		[]core.UserProfile{{ID: "u1", Email: "u1@example.com", AlertsEnabled: true}},
		[]core.BudgetRecord{budget("u1", "food", "900")},
	)
	addSpending(fx.spending, "u1", spendingOn(5, "food", "300"))

	summary, err := fx.forecaster.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if fx.notifier.count() != 0 || fx.alerts.count() != 0 {
		t.Error("expected no alert for estimate within cap")
	}
}

func TestOverrunForecasterAlertsAtMostOncePerMonth(t *testing.T) {
	fx := newOverrunFixture(
		[]core.UserProfile{{ID: "u1", Email: "u1@example.com", AlertsEnabled: true}},
		[]core.BudgetRecord{budget("u1", "food", "500")},
	)
	addSpending(fx.spending, "u1", spendingOn(2, "food", "400"))

	for i := 0; i < 3; i++ {
		if _, err := fx.forecaster.Run(context.Background()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	if fx.notifier.count() != 1 {
		t.Errorf("sent %d mails over three runs, want 1", fx.notifier.count())
	}
	if fx.alerts.count() != 1 {
		t.Errorf("alert log entries = %d, want 1", fx.alerts.count())
	}
}

func TestOverrunForecasterSkipsWhenAlertsDisabledOrUserUnknown(t *testing.T) {
	fx := newOverrunFixture(
		[]core.UserProfile{{ID: "muted", Email: "m@example.com", AlertsEnabled: false}},
		[]core.BudgetRecord{budget("muted", "food", "10"), budget("ghost", "food", "10")},
	)
	addSpending(fx.spending, "muted", spendingOn(2, "food", "400"))

	summary, err := fx.forecaster.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 2 {
		t.Fatalf("summary = %+v, want 2 skipped", summary)
	}
	if fx.notifier.count() != 0 {
		t.Error("expected no mail")
	}
}

func TestOverrunForecasterSkipsZeroSpending(t *testing.T) {
	fx := newOverrunFixture(
		[]core.UserProfile{{ID: "u1", Email: "u1@example.com", AlertsEnabled: true}},
		[]core.BudgetRecord{budget("u1", "food", "100")},
	)

	summary, err := fx.forecaster.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want 1 skipped", summary)
	}
}

func TestOverrunForecasterRetriesAfterSendFailure(t *testing.T) {
	fx := newOverrunFixture(
		[]core.UserProfile{{ID: "u1", Email: "u1@example.com", AlertsEnabled: true}},
		[]core.BudgetRecord{budget("u1", "food", "500")},
	)
	addSpending(fx.spending, "u1", spendingOn(2, "food", "400"))

	fx.notifier.err = context.DeadlineExceeded
	summary, err := fx.forecaster.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}
	if fx.alerts.count() != 0 {
		t.Fatal("failed send must not leave a dedup entry")
	}

	fx.notifier.err = nil
	if _, err := fx.forecaster.Run(context.Background()); err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if fx.notifier.count() != 1 || fx.alerts.count() != 1 {
		t.Errorf("after retry: mails = %d, entries = %d, want 1 and 1", fx.notifier.count(), fx.alerts.count())
	}
}

func TestOverrunForecasterSkipsOwnerWithoutEmail(t *testing.T) {
	fx := newOverrunFixture(
		[]core.UserProfile{{ID: "u1", AlertsEnabled: true}},
		[]core.BudgetRecord{budget("u1", "food", "500")},
	)
	addSpending(fx.spending, "u1", spendingOn(2, "food", "400"))

	summary, err := fx.forecaster.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want 1 skipped", summary)
	}
	if fx.alerts.count() != 0 {
		t.Error("no entry expected when no mail could be sent")
	}
}

func TestOverrunForecasterIsolatesPerBudgetFailures(t *testing.T) {
	fx := newOverrunFixture(
		[]core.UserProfile{
			{ID: "broken", Email: "b@example.com", AlertsEnabled: true},
			{ID: "ok", Email: "ok@example.com", AlertsEnabled: true},
		},
		[]core.BudgetRecord{budget("broken", "food", "500"), budget("ok", "food", "500")},
	)
	addSpending(fx.spending, "ok", spendingOn(2, "food", "400"))
	fx.forecaster.spending = &brokenSpending{inner: fx.spending, failFor: map[string]bool{"broken": true}}

	summary, err := fx.forecaster.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Processed != 1 {
		t.Fatalf("summary = %+v, want 1 failed and 1 processed", summary)
	}
	if fx.notifier.count() != 1 {
		t.Errorf("mails = %d, want 1 for the healthy budget", fx.notifier.count())
	}
}
