package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid marks every configuration failure. Callers treat it as fatal.
var ErrInvalid = errors.New("invalid configuration")

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverSnowflake = "snowflake"
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
	DriverDuckDB    = "duckdb"
	DriverSQLite    = "sqlite"
)

const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

const DefaultSystemPrompt = "Analyze the following manufacturing data and provide insights or suggestions for improvement."

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	AI            AIConfig
	Dashboard     DashboardConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type WarehouseConfig struct {
	Driver         string
	DSN            string
	Host           string
	Port           int
	Account        string
	User           string
	Password       string
	Warehouse      string
	Database       string
	Schema         string
	Role           string
	Namespace      string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

type AIConfig struct {
	Enabled     bool
	Provider    string
	BaseURL     string
	APIVersion  string
	Deployment  string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type DashboardConfig struct {
	SystemPrompt string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, invalid("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("MFGDASH_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, invalid("invalid MFGDASH_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "MFGDASH_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "MFGDASH_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "MFGDASH_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "MFGDASH_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "MFGDASH_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_DSN", &cfg.Warehouse.DSN) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_HOST", &cfg.Warehouse.Host) },
		func() error { return applyInt(lookup, "MFGDASH_WAREHOUSE_PORT", &cfg.Warehouse.Port) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_ACCOUNT", &cfg.Warehouse.Account) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_USER", &cfg.Warehouse.User) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_PASSWORD", &cfg.Warehouse.Password) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_NAME", &cfg.Warehouse.Warehouse) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_DATABASE", &cfg.Warehouse.Database) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_SCHEMA", &cfg.Warehouse.Schema) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_ROLE", &cfg.Warehouse.Role) },
		func() error { return applyString(lookup, "MFGDASH_WAREHOUSE_NAMESPACE", &cfg.Warehouse.Namespace) },
		func() error {
			return applyDuration(lookup, "MFGDASH_WAREHOUSE_CONNECT_TIMEOUT", &cfg.Warehouse.ConnectTimeout)
		},
		func() error { return applyDuration(lookup, "MFGDASH_WAREHOUSE_QUERY_TIMEOUT", &cfg.Warehouse.QueryTimeout) },
		func() error { return applyBool(lookup, "MFGDASH_AI_ENABLED", &cfg.AI.Enabled) },
		func() error { return applyString(lookup, "MFGDASH_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "MFGDASH_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "MFGDASH_AI_API_VERSION", &cfg.AI.APIVersion) },
		func() error { return applyString(lookup, "MFGDASH_AI_DEPLOYMENT", &cfg.AI.Deployment) },
		func() error { return applyString(lookup, "MFGDASH_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyInt(lookup, "MFGDASH_AI_MAX_TOKENS", &cfg.AI.MaxTokens) },
		func() error { return applyFloat(lookup, "MFGDASH_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "MFGDASH_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyString(lookup, "MFGDASH_SYSTEM_PROMPT", &cfg.Dashboard.SystemPrompt) },
		func() error { return applyBool(lookup, "MFGDASH_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "MFGDASH_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Warehouse.Driver = strings.ToLower(cfg.Warehouse.Driver)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or malformed setting.
func (c Config) Validate() error {
	if c.Service.Name == "" {
		return invalid("service name is required")
	}
	if c.HTTP.Address == "" {
		return invalid("http address is required")
	}
	if err := c.Warehouse.validate(); err != nil {
		return err
	}
	if c.AI.Enabled {
		if err := c.AI.validate(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.Dashboard.SystemPrompt) == "" {
		return invalid("system prompt must not be empty")
	}
	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func (w WarehouseConfig) validate() error {
	switch w.Driver {
	case DriverSnowflake:
		if w.Account == "" {
			return invalid("MFGDASH_WAREHOUSE_ACCOUNT is required for snowflake")
		}
		if w.User == "" || w.Password == "" {
			return invalid("MFGDASH_WAREHOUSE_USER and MFGDASH_WAREHOUSE_PASSWORD are required for snowflake")
		}
		if w.Warehouse == "" {
			return invalid("MFGDASH_WAREHOUSE_NAME is required for snowflake")
		}
	case DriverPostgres, DriverSQLServer:
		if w.DSN == "" && (w.Host == "" || w.Database == "") {
			return invalid("MFGDASH_WAREHOUSE_DSN or MFGDASH_WAREHOUSE_HOST and MFGDASH_WAREHOUSE_DATABASE are required for %s", w.Driver)
		}
	case DriverDuckDB, DriverSQLite:
		if w.DSN == "" {
			return invalid("MFGDASH_WAREHOUSE_DSN is required for %s", w.Driver)
		}
	case "":
		return invalid("MFGDASH_WAREHOUSE_DRIVER is required")
	default:
		return invalid("unsupported MFGDASH_WAREHOUSE_DRIVER: %q", w.Driver)
	}
	if w.Port < 0 {
		return invalid("invalid MFGDASH_WAREHOUSE_PORT: %d", w.Port)
	}
	if w.Namespace != "" {
		for _, part := range strings.Split(w.Namespace, ".") {
			if !identifierPattern.MatchString(part) {
				return invalid("invalid MFGDASH_WAREHOUSE_NAMESPACE: %q", w.Namespace)
			}
		}
	}
	return nil
}

func (a AIConfig) validate() error {
	if a.BaseURL == "" {
		return invalid("MFGDASH_AI_BASE_URL is required")
	}
	if a.APIKey == "" {
		return invalid("MFGDASH_AI_API_KEY is required")
	}
	if a.Deployment == "" {
		return invalid("MFGDASH_AI_DEPLOYMENT is required")
	}
	switch a.Provider {
	case ProviderAzure:
		if a.APIVersion == "" {
			return invalid("MFGDASH_AI_API_VERSION is required for azure")
		}
	case ProviderOpenAI:
	default:
		return invalid("unsupported MFGDASH_AI_PROVIDER: %q", a.Provider)
	}
	if a.MaxTokens <= 0 {
		return invalid("MFGDASH_AI_MAX_TOKENS must be positive")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "mfgdash-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Driver:         DriverSnowflake,
			Database:       "MANUFACTURING_DATA",
			Schema:         "DEMO",
			Namespace:      "MANUFACTURING_DATA.DEMO",
			ConnectTimeout: 15 * time.Second,
			QueryTimeout:   60 * time.Second,
		},
		AI: AIConfig{
			Enabled:     true,
			Provider:    ProviderAzure,
			BaseURL:     "https://aoa-ai-demo2.openai.azure.com/",
			APIVersion:  "2023-12-01-preview",
			Deployment:  "manufacturing-demo",
			MaxTokens:   1000,
			Temperature: 0,
			Timeout:     60 * time.Second,
		},
		Dashboard: DashboardConfig{
			SystemPrompt: DefaultSystemPrompt,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileDev:
		cfg.Warehouse = localWarehouse(cfg.Warehouse, "file:mfgdash.db")
		cfg.AI.Enabled = false
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Warehouse = localWarehouse(cfg.Warehouse, "file:mfgdash-test.db")
		cfg.AI.Enabled = false
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
	}

	return cfg
}

// localWarehouse points dev and test profiles at the sqlite demo warehouse
// written by mfgdash-seed.
func localWarehouse(w WarehouseConfig, dsn string) WarehouseConfig {
	w.Driver = DriverSQLite
	w.DSN = dsn
	w.Database = ""
	w.Schema = ""
	w.Namespace = ""
	return w
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return invalid("invalid %s: %v", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return invalid("invalid %s: %v", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return invalid("invalid %s: %v", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return invalid("invalid %s: %v", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return invalid("invalid %s: %q", key, raw)
	}
	return nil
}
