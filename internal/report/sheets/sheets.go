// Package sheets implements the report sink on a Google Sheets
// spreadsheet, written through a service-account credential.
package sheets

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"scangrade/internal/report"
)

// Sink appends report rows to one sheet of one spreadsheet.
type Sink struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	sheetName     string
	allowRewrite  bool
}

// New creates a Sheets-backed sink. When allowRewrite is false a header
// mismatch is reported instead of rewriting the stored header row.
func New(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, allowRewrite bool) (*Sink, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Sink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		allowRewrite:  allowRewrite,
	}, nil
}

// EnsureHeader compares the sheet's first row with the wanted header and
// rewrites it in place when allowed. An empty sheet always gets the header
// written. Rewriting clears the old header first so stale trailing columns
// do not survive; rows below it are not migrated.
func (s *Sink) EnsureHeader(ctx context.Context, header []string) error {
	rng := fmt.Sprintf("%s!1:1", s.sheetName)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}

	var current []string
	if len(resp.Values) > 0 {
		for _, cell := range resp.Values[0] {
			current = append(current, fmt.Sprint(cell))
		}
	}
	write, err := report.CheckHeader(current, header, s.allowRewrite)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	if len(current) > 0 {
		if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &sheetsapi.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear header row: %w", err)
		}
	}
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{toCells(header)}}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	slog.Info("rewrote report header row", "sheet", s.sheetName, "columns", len(header))
	return nil
}

// Append adds one row after the last non-empty row of the sheet.
func (s *Sink) Append(ctx context.Context, row []string) error {
	rng := fmt.Sprintf("%s!A:Z", s.sheetName)
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{toCells(row)}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append report row: %w", err)
	}
	return nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
