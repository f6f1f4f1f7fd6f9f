package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mfgdash/mfgdash/internal/config"
	"github.com/mfgdash/mfgdash/internal/views"
)

// SQLConnector opens a single-connection *sql.DB per Connect call. Nothing is
// pooled or reused between calls.
type SQLConnector struct {
	driver         string
	sqlDriver      string
	dsn            string
	connectTimeout time.Duration
}

// NewConnector resolves the driver and DSN for cfg. Failures wrap
// config.ErrInvalid.
func NewConnector(cfg config.WarehouseConfig) (*SQLConnector, error) {
	spec, ok := driverSpecs[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported warehouse driver %q", config.ErrInvalid, cfg.Driver)
	}
	dsn, err := spec.dsn(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: build %s dsn: %v", config.ErrInvalid, cfg.Driver, err)
	}
	return &SQLConnector{
		driver:         cfg.Driver,
		sqlDriver:      spec.sqlDriver,
		dsn:            dsn,
		connectTimeout: cfg.ConnectTimeout,
	}, nil
}

// DialectFor returns the SQL dialect of a configured driver.
func DialectFor(driver string) (views.Dialect, error) {
	spec, ok := driverSpecs[driver]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported warehouse driver %q", config.ErrInvalid, driver)
	}
	return spec.dialect, nil
}

func (c *SQLConnector) Driver() string {
	return c.driver
}

func (c *SQLConnector) Connect(ctx context.Context) (Conn, error) {
	db, err := c.Open(ctx)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Open is Connect with the concrete handle, for callers that need
// transactions such as the demo seeder.
func (c *SQLConnector) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(c.sqlDriver, c.dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: c.driver, Err: fmt.Errorf("open: %w", err)}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx := ctx
	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Driver: c.driver, Err: fmt.Errorf("ping: %w", err)}
	}
	return db, nil
}
