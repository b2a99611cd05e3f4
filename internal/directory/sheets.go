package directory

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// SheetsFetcher reads directory rows from a Google Sheets range with a
// read-only scope.
type SheetsFetcher struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	readRange     string
}

var _ RowFetcher = (*SheetsFetcher)(nil)

// NewSheetsFetcher creates a fetcher for the given spreadsheet and range
// (e.g. "Sheet1!A:C").
func NewSheetsFetcher(ctx context.Context, credentialsFile, spreadsheetID, readRange string) (*SheetsFetcher, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsFetcher{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

// FetchRows reads the configured range and flattens it to strings.
func (f *SheetsFetcher) FetchRows(ctx context.Context) ([][]string, error) {
	resp, err := f.svc.Spreadsheets.Values.Get(f.spreadsheetID, f.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read directory rows: %w", err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		row := make([]string, 0, len(r))
		for _, c := range r {
			row = append(row, fmt.Sprint(c))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
