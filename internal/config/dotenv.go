package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DotEnvLookup layers the variables of a .env file under base: a key set in
// base always wins. A missing file yields base unchanged.
func DotEnvLookup(path string, base LookupFunc) (LookupFunc, error) {
	if base == nil {
		return nil, invalid("lookup function is required")
	}
	if path == "" {
		return base, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	return func(key string) (string, bool) {
		if value, ok := base(key); ok {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}, nil
}
