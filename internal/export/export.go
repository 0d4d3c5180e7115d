// Package export renders day rows as output tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Encoder writes a header and the given rows to w.
type Encoder interface {
	Encode(w io.Writer, rows []domain.OutputRow) error
	ContentType() string
	Extension() string
}

// ForFormat returns the encoder for "csv" or "xlsx".
func ForFormat(format string) (Encoder, error) {
	switch format {
	case "csv":
		return CSV{}, nil
	case "xlsx":
		return XLSX{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// CSV writes the 25-column comma-separated table.
type CSV struct{}

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }
func (CSV) Extension() string   { return ".csv" }

func (CSV) Encode(w io.Writer, rows []domain.OutputRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(rows[i].Fields()); err != nil {
			return fmt.Errorf("write csv row %s: %w", rows[i].Date(), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// SheetName is the worksheet XLSX output is written to.
const SheetName = "daily"

// XLSX writes the table as a single-sheet workbook. Values are stored as
// numbers; blank values and flags leave the cell empty.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) Extension() string { return ".xlsx" }

func (XLSX) Encode(w io.Writer, rows []domain.OutputRow) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	header := domain.Header()
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, rowCells(rows[i])); err != nil {
			return fmt.Errorf("write xlsx row %s: %w", rows[i].Date(), err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush xlsx sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func rowCells(r domain.OutputRow) []interface{} {
	cells := make([]interface{}, 0, 1+len(r.Readings)*4)
	cells = append(cells, r.Date())
	for _, rd := range r.Readings {
		if rd.HasValue {
			cells = append(cells, rd.Number)
		} else {
			cells = append(cells, nil)
		}
		cells = append(cells, flagCell(rd.MFlag), flagCell(rd.QFlag), flagCell(rd.SFlag))
	}
	return cells
}

func flagCell(f string) interface{} {
	if f == "" {
		return nil
	}
	return f
}
