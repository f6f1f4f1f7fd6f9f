package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfgdash/mfgdash/internal/table"
	"github.com/mfgdash/mfgdash/internal/views"
)

// Conn is a single warehouse connection. *sql.DB satisfies it.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// Connector opens a fresh connection for every call. Callers own the
// returned Conn and must close it.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectionError means the warehouse could not be reached or refused the
// credentials.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Driver == "" {
		return fmt.Sprintf("connect to warehouse: %v", e.Err)
	}
	return fmt.Sprintf("connect to %s warehouse: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError means the warehouse was reachable but the view's query failed:
// malformed SQL, missing permissions, or a timeout.
type QueryError struct {
	View    views.View
	Timeout bool
	Err     error
}

func (e *QueryError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("query for view %s timed out: %v", e.View, e.Err)
	}
	return fmt.Sprintf("query for view %s failed: %v", e.View, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

type Accessor struct {
	Connector    Connector
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

func NewAccessor(connector Connector, queryTimeout time.Duration, logger *slog.Logger) *Accessor {
	return &Accessor{Connector: connector, QueryTimeout: queryTimeout, Logger: logger}
}

// Fetch runs stmt on its own connection and materializes every row. The
// connection is closed before Fetch returns, on success and failure alike.
func (a *Accessor) Fetch(ctx context.Context, stmt views.Statement) (table.Table, error) {
	if a.Connector == nil {
		return table.Table{}, &ConnectionError{Err: errors.New("connector is not configured")}
	}
	start := time.Now()

	conn, err := a.Connector.Connect(ctx)
	if err != nil {
		return table.Table{}, asConnectionError(err)
	}
	defer func() { _ = conn.Close() }()

	queryCtx := ctx
	if a.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, a.QueryTimeout)
		defer cancel()
	}

	result, err := readAll(queryCtx, conn, stmt)
	if err != nil {
		timedOut := ctx.Err() == nil &&
			(errors.Is(err, context.DeadlineExceeded) || errors.Is(queryCtx.Err(), context.DeadlineExceeded))
		return table.Table{}, &QueryError{View: stmt.View, Timeout: timedOut, Err: err}
	}

	if a.Logger != nil {
		a.Logger.DebugContext(ctx, "warehouse query completed",
			slog.String("view", stmt.View.String()),
			slog.Int("rows", result.Len()),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return result, nil
}

// Ping opens and closes one connection.
func (a *Accessor) Ping(ctx context.Context) error {
	if a.Connector == nil {
		return &ConnectionError{Err: errors.New("connector is not configured")}
	}
	conn, err := a.Connector.Connect(ctx)
	if err != nil {
		return asConnectionError(err)
	}
	if err := conn.Close(); err != nil {
		return &ConnectionError{Err: fmt.Errorf("close: %w", err)}
	}
	return nil
}

func readAll(ctx context.Context, conn Conn, stmt views.Statement) (table.Table, error) {
	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return table.Table{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return table.Table{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return table.Table{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, fmt.Errorf("iterate rows: %w", err)
	}

	return table.Table{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func asConnectionError(err error) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	return &ConnectionError{Err: err}
}
