package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/Konsultn-Engineering/sqlflow/dialect"
)

func init() {
	Register("mysql", mysqlProvider{dialect: dialect.NewMySQLDialect()})
	Register("mariadb", mysqlProvider{dialect: dialect.NewMySQLDialect()})
	Register("tidb", mysqlProvider{dialect: dialect.NewTiDBDialect()})
}

// mysqlProvider connects with go-sql-driver/mysql. TiDB speaks the same
// protocol and differs only in dialect.
type mysqlProvider struct {
	dialect dialect.Dialect
}

func (p mysqlProvider) Dialect() dialect.Dialect {
	return p.dialect
}

func mysqlConfig(cfg Config) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	mc.TLSConfig = mysqlTLS(cfg.SSLMode)
	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	return mc
}

func (p mysqlProvider) Connect(ctx context.Context, cfg Config) (Connection, error) {
	connector, err := mysql.NewConnector(mysqlConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("configure mysql: %w", err)
	}
	db := sql.OpenDB(connector)
	conn := newSQLConnection(db, p.dialect, cfg.Pool)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return conn, nil
}

// mysqlTLS maps libpq-style ssl modes onto the driver's tls parameter.
func mysqlTLS(mode string) string {
	switch mode {
	case "", "disable":
		return ""
	case "require", "verify-ca", "verify-full":
		return "true"
	case "prefer", "allow":
		return "preferred"
	default:
		return mode
	}
}
