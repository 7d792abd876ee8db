package connector

import (
	"context"
	"database/sql"
	"time"

	"github.com/Konsultn-Engineering/sqlflow/dialect"
)

// Connection is an open database handle together with the dialect its
// statements are written in.
type Connection interface {
	DB() *sql.DB
	Dialect() dialect.Dialect
	Health(ctx context.Context) error
	Stats() ConnectionStats
	Close() error
}

// Connector opens connections for one configuration.
type Connector interface {
	Connect(ctx context.Context) (Connection, error)
	ConnectWithRetry(ctx context.Context, opts RetryConfig) (Connection, error)
}

// sqlConnection is a Connection over a plain *sql.DB.
type sqlConnection struct {
	db      *sql.DB
	dialect dialect.Dialect
}

func newSQLConnection(db *sql.DB, d dialect.Dialect, pool PoolConfig) *sqlConnection {
	applyPool(db, pool)
	return &sqlConnection{db: db, dialect: d}
}

func (c *sqlConnection) DB() *sql.DB              { return c.db }
func (c *sqlConnection) Dialect() dialect.Dialect { return c.dialect }

func (c *sqlConnection) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqlConnection) Stats() ConnectionStats {
	return statsFromDB(c.db.Stats())
}

func (c *sqlConnection) Close() error {
	return c.db.Close()
}

func applyPool(db *sql.DB, p PoolConfig) {
	if p.MaxOpen > 0 {
		db.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		db.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxLifetime > 0 {
		db.SetConnMaxLifetime(p.MaxLifetime)
	}
	if p.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.MaxIdleTime)
	}
}

// withConnectTimeout bounds ctx by the configured connect timeout.
func withConnectTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
