// Package export writes series tables to spreadsheet files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tejusbharadwaj/pvforecast/internal/series"
)

// ErrUnsupportedFormat is returned for output files that are neither .csv
// nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format")

const (
	indexHeader = "date"
	sheetName   = "data"
)

// WriteTable writes t to path. The format follows the file extension.
func WriteTable(path string, t *series.Table) (err error) {
	var write func(io.Writer, *series.Table) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".xlsx":
		write = WriteXLSX
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, t)
}

// WriteCSV writes a header row followed by one line per table row. Missing
// values are left empty.
func WriteCSV(w io.Writer, t *series.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(t)); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := make([]string, 0, len(row.Values)+1)
		rec = append(rec, row.Time.Format(time.RFC3339))
		for _, v := range row.Values {
			if math.IsNaN(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes t to a single worksheet. Timestamps are stored as
// RFC3339 strings so the offset survives.
func WriteXLSX(w io.Writer, t *series.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for col, name := range header(t) {
		if err := setCell(f, col, 1, name); err != nil {
			return err
		}
	}
	for i, row := range t.Rows {
		r := i + 2
		if err := setCell(f, 0, r, row.Time.Format(time.RFC3339)); err != nil {
			return err
		}
		for j, v := range row.Values {
			if math.IsNaN(v) {
				continue
			}
			if err := setCell(f, j+1, r, v); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

func setCell(f *excelize.File, col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheetName, cell, v)
}

func header(t *series.Table) []string {
	return append([]string{indexHeader}, t.Columns...)
}
