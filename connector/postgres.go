package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Konsultn-Engineering/sqlflow/dialect"
)

func init() {
	Register("postgres", postgresProvider{})
	Register("postgresql", postgresProvider{})
}

// postgresProvider connects through a pgx pool exposed as *sql.DB.
type postgresProvider struct{}

func (postgresProvider) Dialect() dialect.Dialect {
	return dialect.NewPostgresDialect()
}

func postgresDSN(cfg Config) string {
	return NewDSNBuilder("postgres").
		Auth(cfg.Username, cfg.Password).
		Host(cfg.Host, cfg.Port).
		Database(cfg.Database).
		Param("sslmode", cfg.SSLMode).
		Params(cfg.Params).
		Build()
}

func (p postgresProvider) Connect(ctx context.Context, cfg Config) (Connection, error) {
	// apply defaults
	if cfg.Pool.MaxOpen <= 0 {
		cfg.Pool.MaxOpen = 10
	}
	if cfg.Pool.MaxLifetime == 0 {
		cfg.Pool.MaxLifetime = time.Hour
	}
	if cfg.Pool.MaxIdleTime == 0 {
		cfg.Pool.MaxIdleTime = 30 * time.Minute
	}

	poolCfg, err := pgxpool.ParseConfig(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Pool.MaxOpen)
	poolCfg.MinConns = int32(min(cfg.Pool.MaxIdle, cfg.Pool.MaxOpen))
	poolCfg.MaxConnLifetime = cfg.Pool.MaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Pool.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &postgresConnection{pool: pool, db: stdlib.OpenDBFromPool(pool), dialect: p.Dialect()}, nil
}

type postgresConnection struct {
	pool    *pgxpool.Pool
	db      *sql.DB
	dialect dialect.Dialect
}

func (c *postgresConnection) DB() *sql.DB              { return c.db }
func (c *postgresConnection) Dialect() dialect.Dialect { return c.dialect }

func (c *postgresConnection) Health(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Stats reports the pgx pool, which owns the physical connections.
func (c *postgresConnection) Stats() ConnectionStats {
	s := c.pool.Stat()
	return ConnectionStats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
		WaitCount:       s.EmptyAcquireCount(),
		WaitDuration:    s.AcquireDuration(),
	}
}

func (c *postgresConnection) Close() error {
	err := c.db.Close()
	c.pool.Close()
	return err
}
