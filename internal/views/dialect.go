package views

import (
	"fmt"
	"strconv"
	"strings"
)

// SQLiteLowerFunc is the Unicode-aware lower-casing function the sqlite
// dialect folds with. SQLite's own LOWER only folds ASCII, so the sqlite
// connector registers this function on every connection.
const SQLiteLowerFunc = "mfgdash_lower"

// Dialect covers the places where warehouses disagree on syntax for the
// dashboard queries: bind placeholders and case-insensitive matching.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument, 1-based.
	Placeholder(n int) string
	// ContainsFold matches column against a LIKE pattern bound at placeholder,
	// ignoring case. The pattern uses '!' as its escape character.
	ContainsFold(column, placeholder string) string
	// ContainsPattern wraps term in a LIKE pattern that matches it literally
	// anywhere in the value.
	ContainsPattern(term string) string
}

const (
	standardLikeSpecials = "%_"
	// T-SQL LIKE also reads [...] as a character class.
	sqlServerLikeSpecials = "%_["
)

var (
	Snowflake Dialect = dialect{name: "snowflake", marker: questionMarker, ilike: true, specials: standardLikeSpecials}
	DuckDB    Dialect = dialect{name: "duckdb", marker: questionMarker, ilike: true, specials: standardLikeSpecials}
	Postgres  Dialect = dialect{name: "postgres", marker: dollarMarker, ilike: true, specials: standardLikeSpecials}
	SQLServer Dialect = dialect{name: "sqlserver", marker: atPMarker, lower: "LOWER", specials: sqlServerLikeSpecials}
	SQLite    Dialect = dialect{name: "sqlite", marker: questionMarker, lower: SQLiteLowerFunc, specials: standardLikeSpecials}
)

type dialect struct {
	name     string
	marker   func(int) string
	ilike    bool
	lower    string
	specials string
}

func (d dialect) Name() string {
	return d.name
}

func (d dialect) Placeholder(n int) string {
	return d.marker(n)
}

func (d dialect) ContainsFold(column, placeholder string) string {
	if d.ilike {
		return fmt.Sprintf("%s ILIKE %s ESCAPE '%c'", column, placeholder, likeEscape)
	}
	return fmt.Sprintf("%s(%s) LIKE %s(%s) ESCAPE '%c'", d.lower, column, d.lower, placeholder, likeEscape)
}

func (d dialect) ContainsPattern(term string) string {
	var sb strings.Builder
	sb.Grow(len(term) + 2)
	sb.WriteByte('%')
	for _, r := range term {
		if r == likeEscape || strings.ContainsRune(d.specials, r) {
			sb.WriteRune(likeEscape)
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('%')
	return sb.String()
}

func questionMarker(int) string { return "?" }

func dollarMarker(n int) string { return "$" + strconv.Itoa(n) }

func atPMarker(n int) string { return "@p" + strconv.Itoa(n) }
