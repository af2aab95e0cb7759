// Package export publishes cohort aggregates to a Google Sheet so analysts
// can consume the monthly peer statistics outside the application.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"savemate/internal/core"
)

type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsExporter builds a Sheets client. Credentials come from
// GOOGLE_CREDENTIALS_JSON, GOOGLE_APPLICATION_CREDENTIALS, or application
// default credentials, in that order.
func NewSheetsExporter(ctx context.Context, spreadsheetID, sheetName string) (*SheetsExporter, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var opts []goption.ClientOption
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON"); credsJSON != "" {
		opts = append(opts, goption.WithCredentialsJSON([]byte(credsJSON)))
	} else if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		opts = append(opts, goption.WithCredentialsFile(credsFile))
	}
	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendAggregates appends one row per (cohort, category) to the sheet:
// month, gender, age group, category, average, user count.
func (e *SheetsExporter) AppendAggregates(ctx context.Context, aggregates []core.CohortAggregate) error {
	var values [][]any
	for _, a := range aggregates {
		categories := make([]string, 0, len(a.CategoryAverages))
		for category := range a.CategoryAverages {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			values = append(values, []any{
				a.Month.String(),
				a.Gender,
				a.AgeGroup,
				category,
				a.CategoryAverages[category].StringFixed(2),
				a.UserCount,
			})
		}
	}
	if len(values) == 0 {
		return nil
	}

	rangeRef := fmt.Sprintf("%s!A:F", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rangeRef, &gsheet.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append cohort rows: %w", err)
	}
	return nil
}
