package spending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/supabase-community/supabase-go"

	"savemate/internal/core"
)

// SupabaseStore reads spending records from a Supabase (PostgREST) table.
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

func NewSupabaseStore(url, key, table string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, table: table}, nil
}

// spendingRow is the wire shape of one record. Amount arrives as a string so
// no float conversion ever touches the value.
type spendingRow struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Date        string `json:"date"` // YYYY-MM-DD
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (s *SupabaseStore) ListSpending(ctx context.Context, userID string, q Query) ([]core.SpendingRecord, error) {
	query := s.client.From(s.table).
		Select("*", "", false).
		Eq("user_id", userID)

	if !q.From.IsZero() {
		query = query.Gte("date", q.From.Format("2006-01-02"))
	}
	if !q.To.IsZero() {
		query = query.Lt("date", q.To.Format("2006-01-02"))
	}
	if q.Category != "" {
		query = query.Eq("category", q.Category)
	}

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("list spending for user %s: %w", userID, err)
	}

	var rows []spendingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse spending rows: %w", err)
	}

	records := make([]core.SpendingRecord, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return nil, fmt.Errorf("spending record %s has malformed date %q: %w", row.ID, row.Date, err)
		}
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("spending record %s has malformed amount %q: %w", row.ID, row.Amount, err)
		}
		records = append(records, core.SpendingRecord{
			ID:          row.ID,
			UserID:      row.UserID,
			Date:        date,
			Category:    row.Category,
			Amount:      amount,
			Description: row.Description,
		})
	}
	return records, nil
}

var _ Store = (*SupabaseStore)(nil)
