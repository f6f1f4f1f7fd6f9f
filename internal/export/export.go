// Package export writes a result table as a downloadable file.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mfgdash/mfgdash/internal/table"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts "csv" or "parquet". Empty input is CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv; charset=utf-8"
}

func FileName(name string, f Format) string {
	return name + "." + string(f)
}

func Write(w io.Writer, f Format, t table.Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatParquet:
		return WriteParquet(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// WriteCSV writes a header row and the table's formatted cells, so the file
// matches what the dashboard shows.
func WriteCSV(w io.Writer, t table.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := writer.WriteAll(t.Cells()); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
