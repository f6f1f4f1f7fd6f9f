package warehouse

import (
	"errors"
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/snowflakedb/gosnowflake"

	"github.com/mfgdash/mfgdash/internal/config"
	"github.com/mfgdash/mfgdash/internal/views"
)

type driverSpec struct {
	sqlDriver string
	dialect   views.Dialect
	dsn       func(config.WarehouseConfig) (string, error)
}

var driverSpecs = map[string]driverSpec{
	config.DriverSnowflake: {sqlDriver: "snowflake", dialect: views.Snowflake, dsn: snowflakeDSN},
	config.DriverPostgres:  {sqlDriver: "pgx", dialect: views.Postgres, dsn: postgresDSN},
	config.DriverSQLServer: {sqlDriver: "sqlserver", dialect: views.SQLServer, dsn: sqlServerDSN},
	config.DriverDuckDB:    {sqlDriver: "duckdb", dialect: views.DuckDB, dsn: rawDSN},
	config.DriverSQLite:    {sqlDriver: "sqlite", dialect: views.SQLite, dsn: rawDSN},
}

func snowflakeDSN(cfg config.WarehouseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:      cfg.Account,
		User:         cfg.User,
		Password:     cfg.Password,
		Warehouse:    cfg.Warehouse,
		Database:     cfg.Database,
		Schema:       cfg.Schema,
		Role:         cfg.Role,
		Host:         cfg.Host,
		Port:         cfg.Port,
		LoginTimeout: cfg.ConnectTimeout,
	})
}

func postgresDSN(cfg config.WarehouseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	dsn := url.URL{
		Scheme: "postgres",
		Host:   hostPort(cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.Schema != "" {
		query := url.Values{}
		query.Set("search_path", cfg.Schema)
		dsn.RawQuery = query.Encode()
	}
	return dsn.String(), nil
}

func sqlServerDSN(cfg config.WarehouseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	query := url.Values{}
	query.Set("database", cfg.Database)
	dsn := url.URL{
		Scheme:   "sqlserver",
		Host:     hostPort(cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	if cfg.User != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return dsn.String(), nil
}

func rawDSN(cfg config.WarehouseConfig) (string, error) {
	if cfg.DSN == "" {
		return "", errors.New("dsn is required")
	}
	return cfg.DSN, nil
}

func hostPort(host string, port int) string {
	if port <= 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
