// Package sheet renders short text previews of spreadsheet supporting files.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

// ErrUnsupported the file is a spreadsheet this reader cannot parse (legacy .xls).
var ErrUnsupported = errors.New("spreadsheet format not supported for preview")

type Reader struct {
	MaxRows  int
	MaxCells int
	logger   *slog.Logger
}

func NewReader(maxRows int, logger *slog.Logger) *Reader {
	if maxRows <= 0 {
		maxRows = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{MaxRows: maxRows, MaxCells: 20, logger: logger}
}

// Preview returns up to MaxRows rows per sheet as "a | b | c" lines.
func (r *Reader) Preview(f review.FileHandle) (string, error) {
	switch format(f) {
	case "xlsx":
		return r.xlsx(f)
	case "csv":
		return r.csv(f)
	default:
		return "", ErrUnsupported
	}
}

func format(f review.FileHandle) string {
	ext := strings.ToLower(filepath.Ext(f.Name))
	ct := strings.ToLower(f.ContentType)
	switch {
	case ext == ".xlsx", strings.Contains(ct, "openxmlformats-officedocument.spreadsheetml"):
		return "xlsx"
	case ext == ".csv", strings.Contains(ct, "csv"):
		return "csv"
	}
	return ""
}

func (r *Reader) xlsx(f review.FileHandle) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(f.Data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if err := wb.Close(); err != nil {
			r.logger.Warn("sheet.close.failed", "file", f.Name, "error", err)
		}
	}()

	var b strings.Builder
	sheets := wb.GetSheetList()
	for _, name := range sheets {
		rows, err := r.sheetRows(wb, name)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", name, err)
		}
		if len(sheets) > 1 {
			fmt.Fprintf(&b, "Sheet: %s\n", name)
		}
		r.writeRows(&b, rows)
	}
	return strings.TrimSpace(b.String()), nil
}

// sheetRows streams the sheet and stops once the preview is full, so a huge
// workbook never gets loaded whole.
func (r *Reader) sheetRows(wb *excelize.File, name string) ([][]string, error) {
	it, err := wb.Rows(name)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	return r.take(func() ([]string, error) {
		if !it.Next() {
			if err := it.Error(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return it.Columns()
	})
}

func (r *Reader) csv(f review.FileHandle) (string, error) {
	cr := csv.NewReader(bytes.NewReader(f.Data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := r.take(cr.Read)
	if err != nil {
		return "", fmt.Errorf("read csv: %w", err)
	}
	var b strings.Builder
	r.writeRows(&b, rows)
	return strings.TrimSpace(b.String()), nil
}

// take pulls rows from next until io.EOF or MaxRows+1 non-blank rows; the
// extra row lets writeRows mark the preview as truncated.
func (r *Reader) take(next func() ([]string, error)) ([][]string, error) {
	var rows [][]string
	for filled := 0; filled <= r.MaxRows; {
		rec, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
		if !blankRow(rec) {
			filled++
		}
	}
	return rows, nil
}

func (r *Reader) writeRows(b *strings.Builder, rows [][]string) {
	written := 0
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		if written == r.MaxRows {
			b.WriteString("...\n")
			return
		}
		if len(row) > r.MaxCells {
			row = row[:r.MaxCells]
		}
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
		written++
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
