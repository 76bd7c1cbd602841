// internal/catalog/importer.go
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"librarydesk/internal/validation"
)

var importColumns = []string{"title", "author", "genre", "isbn", "total_copies"}

// RowError explains why one CSV row was not imported. Line is 1-based and
// counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ImportReport summarizes ImportCSV.
type ImportReport struct {
	Imported []int64
	Rejected []RowError
}

// ImportCSV creates one book per row of r. The header names the columns, in
// any order; each row goes through the same validation as POST /books.
// Invalid rows are reported and skipped, store failures abort the import.
func ImportCSV(ctx context.Context, svc Service, r io.Reader) (ImportReport, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return ImportReport{}, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range importColumns {
		if _, ok := index[col]; !ok {
			return ImportReport{}, fmt.Errorf("missing column %q", col)
		}
	}

	var report ImportReport
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		line++
		if err != nil {
			report.Rejected = append(report.Rejected, RowError{Line: line, Err: err})
			continue
		}

		raw := make(map[string]any, len(importColumns))
		for _, col := range importColumns {
			if i := index[col]; i < len(record) {
				raw[col] = strings.TrimSpace(record[i])
			}
		}

		f, err := validation.Book(raw)
		if err != nil {
			report.Rejected = append(report.Rejected, RowError{Line: line, Err: err})
			continue
		}

		id, err := svc.CreateBook(ctx, Draft{
			Title:       f.Title,
			Author:      f.Author,
			Genre:       f.Genre,
			ISBN:        f.ISBN,
			TotalCopies: f.TotalCopies,
		})
		if err != nil {
			return report, fmt.Errorf("line %d: %w", line, err)
		}
		report.Imported = append(report.Imported, id)
	}
}
