package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BudgetChange is one adjusted cap in a CPI adjustment summary.
type BudgetChange struct {
	Category string
	OldCap   decimal.Decimal
	NewCap   decimal.Decimal
}

// OverrunAlert renders the budget-overrun forecast mail.
func OverrunAlert(userName string, month int, category string, estimated, totalCap decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("[SaveMate] %s budget overrun forecast for month %d", category, month)

	body = fmt.Sprintf(
		"Hello %s,<br><br>"+
			"Based on your spending pace this month, your <b>%s</b> spending is "+
			"projected to reach about %s by month end.<br>"+
			"That would exceed your budget of %s, so please keep an eye on your "+
			"spending for the rest of the month.",
		userName, category, estimated.StringFixed(2), totalCap.StringFixed(2))
	return subject, body
}

// AdjustmentReport renders the monthly CPI budget adjustment summary mail.
func AdjustmentReport(userName string, growthRatePercent decimal.Decimal, changes []BudgetChange) (subject, body string) {
	subject = "[SaveMate] Monthly budget adjustment summary"

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,<br><br>", userName)
	b.WriteString("Your budgets were adjusted to reflect this month's price index change.<br>")
	fmt.Fprintf(&b, "Applied inflation rate: %s%%<br><br>", growthRatePercent.StringFixed(2))
	b.WriteString("Adjusted budgets:<br>")
	b.WriteString("<table border='1' style='border-collapse: collapse;'>")
	b.WriteString("<thead><tr><th>Category</th><th>Previous cap</th><th>New cap</th></tr></thead><tbody>")
	for _, c := range changes {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			c.Category, c.OldCap.StringFixed(2), c.NewCap.StringFixed(2))
	}
	b.WriteString("</tbody></table>")
	return subject, b.String()
}
