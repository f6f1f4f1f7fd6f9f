// Package table holds the in-memory result of one view query and the single
// formatter used both for display and for the text handed to the model.
package table

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const (
	NullText        = "NULL"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Table is column-ordered: Rows[i][j] belongs to Columns[j].
type Table struct {
	Columns []string
	Rows    [][]any
}

func (t Table) Len() int {
	return len(t.Rows)
}

// Record returns row i as a column name to value mapping.
func (t Table) Record(i int) map[string]any {
	record := make(map[string]any, len(t.Columns))
	for j, column := range t.Columns {
		if j < len(t.Rows[i]) {
			record[column] = t.Rows[i][j]
		}
	}
	return record
}

// Cells formats every value with FormatValue.
func (t Table) Cells() [][]string {
	cells := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		formatted := make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(row) {
				formatted[j] = FormatValue(row[j])
			} else {
				formatted[j] = NullText
			}
		}
		cells[i] = formatted
	}
	return cells
}

// Text renders the table as right-aligned columns separated by one space,
// header first, without a row index.
func (t Table) Text() string {
	if len(t.Columns) == 0 {
		return ""
	}
	cells := t.Cells()
	widths := make([]int, len(t.Columns))
	for j, column := range t.Columns {
		widths[j] = runewidth.StringWidth(column)
	}
	for _, row := range cells {
		for j, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[j] {
				widths[j] = w
			}
		}
	}

	var sb strings.Builder
	writeLine := func(values []string) {
		for j, value := range values {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(runewidth.FillLeft(value, widths[j]))
		}
	}
	writeLine(t.Columns)
	for _, row := range cells {
		sb.WriteByte('\n')
		writeLine(row)
	}
	return sb.String()
}

// Fingerprint identifies the exact text serialization of the table.
func (t Table) Fingerprint() string {
	sum := sha256.Sum256([]byte(t.Text()))
	return hex.EncodeToString(sum[:])
}

func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return NullText
	case string:
		return flatten(typed)
	case []byte:
		return flatten(string(typed))
	case bool:
		if typed {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case float64:
		return formatFloat(typed, 64)
	case float32:
		return formatFloat(float64(typed), 32)
	case time.Time:
		return typed.Format(TimestampLayout)
	case fmt.Stringer:
		return flatten(typed.String())
	default:
		return flatten(fmt.Sprint(typed))
	}
}

func formatFloat(value float64, bits int) string {
	if math.IsNaN(value) {
		return "NaN"
	}
	return strconv.FormatFloat(value, 'f', -1, bits)
}

// flatten keeps one row per line in Text.
func flatten(value string) string {
	if !strings.ContainsAny(value, "\r\n\t") {
		return value
	}
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(value)
}
