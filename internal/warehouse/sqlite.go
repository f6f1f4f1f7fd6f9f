package warehouse

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"

	"github.com/mfgdash/mfgdash/internal/views"
)

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(views.SQLiteLowerFunc, 1, sqliteLower); err != nil {
		panic(err)
	}
}

// sqliteLower folds text with Unicode case rules. Non-text values pass
// through unchanged.
func sqliteLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch value := args[0].(type) {
	case string:
		return strings.ToLower(value), nil
	case []byte:
		return strings.ToLower(string(value)), nil
	default:
		return value, nil
	}
}
