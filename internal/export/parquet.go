package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"

	"github.com/mfgdash/mfgdash/internal/table"
)

// ColumnsMetadataKey holds the JSON array of column names in display order.
// Parquet groups sort their fields by name, so readers that care about the
// dashboard's order read it from here.
const ColumnsMetadataKey = "mfgdash.columns"

// WriteParquet writes every column as an optional UTF-8 string holding the
// formatted cell. SQL NULL becomes a parquet null.
func WriteParquet(w io.Writer, t table.Table) error {
	names := uniqueNames(t.Columns)
	group := make(parquet.Group, len(names))
	for _, name := range names {
		group[name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("panel", group)

	// Leaf index of each display column within the sorted group.
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	leaf := make(map[string]int, len(sorted))
	for i, name := range sorted {
		leaf[name] = i
	}

	order, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("marshal column order: %w", err)
	}
	writer := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(ColumnsMetadataKey, string(order)))

	cells := t.Cells()
	rows := make([]parquet.Row, 0, len(cells))
	for i, formatted := range cells {
		row := make(parquet.Row, len(names))
		for j, name := range names {
			index := leaf[name]
			if j >= len(t.Rows[i]) || t.Rows[i][j] == nil {
				row[index] = parquet.NullValue().Level(0, 0, index)
				continue
			}
			row[index] = parquet.ByteArrayValue([]byte(formatted[j])).Level(0, 1, index)
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if _, err := writer.WriteRows(rows); err != nil {
			_ = writer.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// uniqueNames suffixes repeated column names, which joins can produce.
func uniqueNames(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, column := range columns {
		base := column
		if base == "" {
			base = "column_" + strconv.Itoa(i+1)
		}
		name := base
		for seen[name] > 0 {
			seen[base]++
			name = base + "_" + strconv.Itoa(seen[base])
		}
		seen[name]++
		out[i] = name
	}
	return out
}
