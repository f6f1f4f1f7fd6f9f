package views

import (
	"fmt"
	"strings"
)

const likeEscape = '!'

// Statement is a query ready for execution. Filter values live only in Args.
type Statement struct {
	View View
	SQL  string
	Args []any
}

type Builder struct {
	// Namespace qualifies table names, e.g. "MANUFACTURING_DATA.DEMO". It is
	// spliced into SQL text and must be validated by the caller.
	Namespace string
	Dialect   Dialect
}

func NewBuilder(namespace string, dialect Dialect) *Builder {
	if dialect == nil {
		dialect = Snowflake
	}
	return &Builder{Namespace: strings.TrimSpace(namespace), Dialect: dialect}
}

// Base returns the unfiltered query for a view.
func (b *Builder) Base(view View) (string, error) {
	productionLines := b.table("Production_Lines")
	machineLogs := b.table("Machine_Logs")
	failureIncidents := b.table("Failure_Incidents")
	products := b.table("d_product")

	switch view {
	case ProductionLines:
		return "SELECT * FROM " + productionLines, nil
	case MachineLogs:
		return "SELECT ml.*, dp.ProductName, dp.Category FROM " + machineLogs + " ml JOIN " + products + " dp ON ml.ProductID = dp.ProductID", nil
	case FailureIncidents:
		return "SELECT fi.*, dp.ProductName, dp.Category FROM " + failureIncidents + " fi JOIN " + products + " dp ON fi.ProductID = dp.ProductID", nil
	case ProductDimension:
		return "SELECT * FROM " + products, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, string(view))
	}
}

// Build appends the filters that apply to view as a WHERE clause of bound
// conditions joined by AND. Filters that do not apply to view are ignored.
func (b *Builder) Build(view View, filters Filters) (Statement, error) {
	base, err := b.Base(view)
	if err != nil {
		return Statement{}, err
	}

	var conditions []string
	var args []any
	bind := func(value any) string {
		args = append(args, value)
		return b.Dialect.Placeholder(len(args))
	}

	switch view {
	case MachineLogs:
		if filters.LineID != nil {
			conditions = append(conditions, "ml.LineID = "+bind(*filters.LineID))
		}
	case FailureIncidents:
		if filters.Resolved != nil {
			conditions = append(conditions, "fi.Resolved = "+bind(*filters.Resolved))
		}
		if filters.Search != "" {
			conditions = append(conditions, b.Dialect.ContainsFold("fi.Description", bind(b.Dialect.ContainsPattern(filters.Search))))
		}
	}

	sql := base
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	return Statement{View: view, SQL: sql, Args: args}, nil
}

func (b *Builder) table(name string) string {
	if b.Namespace == "" {
		return name
	}
	return b.Namespace + "." + name
}
