package connector

import (
	"context"

	"github.com/Konsultn-Engineering/sqlflow/dialect"
)

// Provider opens connections to one kind of database.
type Provider interface {
	Connect(ctx context.Context, config Config) (Connection, error)
	Dialect() dialect.Dialect
}
