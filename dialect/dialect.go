package dialect

import (
	"fmt"
	"strings"
)

// Dialect captures the per-database differences sqlflow cares about: how
// positional placeholders are spelled, how identifiers and values render in
// log output, and whether INSERT can return generated keys as rows.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	Placeholder(n int) string
	RenderValue(v any) string
	// Returning reports whether generated keys are read with
	// INSERT ... RETURNING rather than sql.Result.LastInsertId.
	Returning() bool
}

// ForName returns the dialect for a driver or provider name.
func ForName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx", "pg":
		return NewPostgresDialect(), nil
	case "mysql", "mariadb":
		return NewMySQLDialect(), nil
	case "tidb":
		return NewTiDBDialect(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteDialect(), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}
