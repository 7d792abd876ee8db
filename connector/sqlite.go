package connector

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/Konsultn-Engineering/sqlflow/dialect"
)

func init() {
	Register("sqlite", sqliteProvider{})
	Register("sqlite3", sqliteProvider{})
}

// sqliteProvider opens a SQLite file, or a private in-memory database when
// Database is ":memory:".
type sqliteProvider struct{}

func (sqliteProvider) Dialect() dialect.Dialect {
	return dialect.NewSQLiteDialect()
}

func sqliteDSN(cfg Config) string {
	if len(cfg.Params) == 0 {
		return cfg.Database
	}
	q := make([]string, 0, len(cfg.Params))
	for _, k := range slices.Sorted(maps.Keys(cfg.Params)) {
		q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(cfg.Params[k]))
	}
	sep := "?"
	if strings.Contains(cfg.Database, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(cfg.Database, "file:") + sep + strings.Join(q, "&")
}

func (p sqliteProvider) Connect(ctx context.Context, cfg Config) (Connection, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every connection to ":memory:" gets its own database; pin the pool to
	// one so all statements see the same data.
	if strings.Contains(cfg.Database, ":memory:") {
		cfg.Pool.MaxOpen = 1
		cfg.Pool.MaxIdle = 1
		cfg.Pool.MaxLifetime = 0
		cfg.Pool.MaxIdleTime = 0
	}
	conn := newSQLConnection(db, p.Dialect(), cfg.Pool)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return conn, nil
}
