// Package xlsx implements the report sink on a local .xlsx workbook, for
// deployments without Google Sheets access and for tests.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"scangrade/internal/report"
)

// Sink appends report rows to one sheet of a workbook file. The file is
// opened, modified and saved on every call; a mutex serializes writers
// within the process.
type Sink struct {
	mu           sync.Mutex
	path         string
	sheetName    string
	allowRewrite bool
}

var _ report.Sink = (*Sink)(nil)

// New creates a workbook-backed sink. The file is created on first write.
func New(path, sheetName string, allowRewrite bool) *Sink {
	return &Sink{path: path, sheetName: sheetName, allowRewrite: allowRewrite}
}

// EnsureHeader compares the sheet's first row with the wanted header,
// rewriting it in place when allowed. Rows below the header are not
// migrated to the new schema.
func (s *Sink) EnsureHeader(ctx context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheetName)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", s.sheetName, err)
	}

	var current []string
	if len(rows) > 0 {
		current = rows[0]
	}
	write, err := report.CheckHeader(current, header, s.allowRewrite)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	if len(current) > 0 {
		// Replace row 1 without touching the data rows below it.
		if err := f.RemoveRow(s.sheetName, 1); err != nil {
			return fmt.Errorf("remove header row: %w", err)
		}
		if err := f.InsertRows(s.sheetName, 1, 1); err != nil {
			return fmt.Errorf("insert header row: %w", err)
		}
	}
	if err := f.SetSheetRow(s.sheetName, "A1", toCells(header)); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	return s.save(f)
}

// Append adds one row after the last row of the sheet.
func (s *Sink) Append(ctx context.Context, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheetName)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", s.sheetName, err)
	}
	cell := fmt.Sprintf("A%d", len(rows)+1)
	if err := f.SetSheetRow(s.sheetName, cell, toCells(row)); err != nil {
		return fmt.Errorf("append report row: %w", err)
	}
	return s.save(f)
}

func (s *Sink) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		f := excelize.NewFile()
		if s.sheetName != "Sheet1" {
			if err := f.SetSheetName("Sheet1", s.sheetName); err != nil {
				return nil, fmt.Errorf("name sheet %s: %w", s.sheetName, err)
			}
		}
		return f, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	if idx, err := f.GetSheetIndex(s.sheetName); err != nil || idx < 0 {
		if _, err := f.NewSheet(s.sheetName); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", s.sheetName, err)
		}
	}
	return f, nil
}

func (s *Sink) save(f *excelize.File) error {
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", s.path, err)
	}
	return nil
}

func toCells(row []string) *[]interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return &cells
}
