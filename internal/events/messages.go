package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustedLine is one rescaled budget inside an adjustment report.
type AdjustedLine struct {
	Category string          `json:"category"`
	OldCap   decimal.Decimal `json:"old_cap"`
	NewCap   decimal.Decimal `json:"new_cap"`
}

// BudgetAdjustmentMessage carries everything the report worker needs to mail
// one user their CPI adjustment summary, so the worker never has to read the
// stores itself.
type BudgetAdjustmentMessage struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Email             string          `json:"email"`
	Name              string          `json:"name"`
	GrowthRatePercent decimal.Decimal `json:"growth_rate_percent"`
	Lines             []AdjustedLine  `json:"lines"`
	Timestamp         time.Time       `json:"timestamp"`
}

func NewBudgetAdjustmentMessage(userID, email, name string, rate decimal.Decimal, lines []AdjustedLine) *BudgetAdjustmentMessage {
	return &BudgetAdjustmentMessage{
		ID:                uuid.NewString(),
		UserID:            userID,
		Email:             email,
		Name:              name,
		GrowthRatePercent: rate,
		Lines:             lines,
		Timestamp:         time.Now(),
	}
}

func (m *BudgetAdjustmentMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAdjustmentMessageFromJSON(data []byte) (*BudgetAdjustmentMessage, error) {
	var msg BudgetAdjustmentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
