package dialect

type SQLite struct{}

func NewSQLiteDialect() Dialect {
	return &SQLite{}
}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (SQLite) Placeholder(int) string {
	return "?"
}

func (SQLite) RenderValue(v any) string {
	return renderValue(v, standardHex)
}

// Returning is false: LastInsertId covers generated keys on SQLite.
func (SQLite) Returning() bool {
	return false
}
