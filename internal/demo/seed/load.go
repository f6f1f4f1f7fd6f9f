package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mfgdash/mfgdash/internal/views"
)

type columnKind int

const (
	kindInt columnKind = iota
	kindText
	kindFloat
	kindTime
	kindBool
)

type column struct {
	name string
	kind columnKind
}

type tableSpec struct {
	name    string
	columns []column
	rows    func(Fixture) [][]any
}

var columnTypes = map[string]map[columnKind]string{
	"sqlite":    {kindInt: "INTEGER", kindText: "TEXT", kindFloat: "REAL", kindTime: "TIMESTAMP", kindBool: "BOOLEAN"},
	"duckdb":    {kindInt: "BIGINT", kindText: "VARCHAR", kindFloat: "DOUBLE", kindTime: "TIMESTAMP", kindBool: "BOOLEAN"},
	"postgres":  {kindInt: "BIGINT", kindText: "TEXT", kindFloat: "DOUBLE PRECISION", kindTime: "TIMESTAMP", kindBool: "BOOLEAN"},
	"sqlserver": {kindInt: "BIGINT", kindText: "NVARCHAR(400)", kindFloat: "FLOAT", kindTime: "DATETIME2", kindBool: "BIT"},
	"snowflake": {kindInt: "NUMBER(38,0)", kindText: "VARCHAR", kindFloat: "FLOAT", kindTime: "TIMESTAMP_NTZ", kindBool: "BOOLEAN"},
}

var tables = []tableSpec{
	{
		name: "d_product",
		columns: []column{
			{"ProductID", kindInt}, {"ProductName", kindText}, {"Category", kindText}, {"UnitCost", kindFloat},
		},
		rows: func(f Fixture) [][]any {
			out := make([][]any, 0, len(f.Products))
			for _, p := range f.Products {
				out = append(out, []any{p.ProductID, p.ProductName, p.Category, p.UnitCost})
			}
			return out
		},
	},
	{
		name: "Production_Lines",
		columns: []column{
			{"LineID", kindInt}, {"LineName", kindText}, {"Location", kindText}, {"Capacity", kindInt}, {"Status", kindText},
		},
		rows: func(f Fixture) [][]any {
			out := make([][]any, 0, len(f.Lines))
			for _, l := range f.Lines {
				out = append(out, []any{l.LineID, l.LineName, l.Location, l.Capacity, l.Status})
			}
			return out
		},
	},
	{
		name: "Machine_Logs",
		columns: []column{
			{"LogID", kindInt}, {"LineID", kindInt}, {"ProductID", kindInt}, {"MachineID", kindText},
			{"LogTime", kindTime}, {"Status", kindText}, {"Temperature", kindFloat}, {"UnitsProduced", kindInt},
		},
		rows: func(f Fixture) [][]any {
			out := make([][]any, 0, len(f.Logs))
			for _, m := range f.Logs {
				out = append(out, []any{m.LogID, m.LineID, m.ProductID, m.MachineID, m.LogTime, m.Status, m.Temperature, m.UnitsProduced})
			}
			return out
		},
	},
	{
		name: "Failure_Incidents",
		columns: []column{
			{"IncidentID", kindInt}, {"LineID", kindInt}, {"ProductID", kindInt}, {"IncidentTime", kindTime},
			{"Description", kindText}, {"Resolved", kindBool}, {"DowntimeMinutes", kindInt},
		},
		rows: func(f Fixture) [][]any {
			out := make([][]any, 0, len(f.Incidents))
			for _, i := range f.Incidents {
				out = append(out, []any{i.IncidentID, i.LineID, i.ProductID, i.IncidentTime, i.Description, i.Resolved, i.DowntimeMinutes})
			}
			return out
		},
	},
}

// TableNames lists the seeded tables in load order.
func TableNames() []string {
	out := make([]string, 0, len(tables))
	for _, spec := range tables {
		out = append(out, spec.name)
	}
	return out
}

// Load drops, recreates and fills the four dashboard tables under namespace
// in one transaction. An empty namespace uses the connection's default
// schema.
func Load(ctx context.Context, db *sql.DB, dialect views.Dialect, namespace string, fixture Fixture) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dialect == nil {
		return fmt.Errorf("dialect is required")
	}
	types, ok := columnTypes[dialect.Name()]
	if !ok {
		return fmt.Errorf("seeding is not supported for %s", dialect.Name())
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, spec := range tables {
		name := qualify(namespace, spec.name)
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, createStatement(name, spec.columns, types)); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		insert := insertStatement(name, spec.columns, dialect)
		for _, row := range spec.rows(fixture) {
			if _, err := tx.ExecContext(ctx, insert, row...); err != nil {
				return fmt.Errorf("insert into %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	committed = true
	return nil
}

func createStatement(name string, columns []column, types map[columnKind]string) string {
	defs := make([]string, 0, len(columns))
	for i, col := range columns {
		def := col.name + " " + types[col.kind]
		if i == 0 {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return "CREATE TABLE " + name + " (" + strings.Join(defs, ", ") + ")"
}

func insertStatement(name string, columns []column, dialect views.Dialect) string {
	names := make([]string, 0, len(columns))
	markers := make([]string, 0, len(columns))
	for i, col := range columns {
		names = append(names, col.name)
		markers = append(markers, dialect.Placeholder(i+1))
	}
	return "INSERT INTO " + name + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(markers, ", ") + ")"
}

func qualify(namespace, table string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return table
	}
	return namespace + "." + table
}
