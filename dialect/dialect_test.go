package dialect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForName(t *testing.T) {
	for name, want := range map[string]string{
		"postgres": "postgres",
		"pgx":      "postgres",
		"MySQL":    "mysql",
		"tidb":     "tidb",
		"sqlite3":  "sqlite",
	} {
		d, err := ForName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name(), name)
	}

	_, err := ForName("oracle")
	assert.EqualError(t, err, `unknown dialect "oracle"`)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3", NewPostgresDialect().Placeholder(3))
	assert.Equal(t, "?", NewMySQLDialect().Placeholder(3))
	assert.Equal(t, "?", NewTiDBDialect().Placeholder(3))
	assert.Equal(t, "?", NewSQLiteDialect().Placeholder(3))
}

func TestReturning(t *testing.T) {
	assert.True(t, NewPostgresDialect().Returning())
	assert.False(t, NewMySQLDialect().Returning())
	assert.False(t, NewTiDBDialect().Returning())
	assert.False(t, NewSQLiteDialect().Returning())
}

func TestRenderValue(t *testing.T) {
	d := NewSQLiteDialect()
	ts := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)

	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"o'neil", "'o''neil'"},
		{true, "TRUE"},
		{int64(42), "42"},
		{float64(1.5), "1.5"},
		{ts, "'2024-05-01 13:04:05.000000'"},
		{[]byte{0xca, 0xfe}, "X'cafe'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.RenderValue(tt.in))
	}

	assert.Equal(t, `'\xcafe'`, NewPostgresDialect().RenderValue([]byte{0xca, 0xfe}))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"users"`, NewPostgresDialect().QuoteIdentifier("users"))
	assert.Equal(t, "`users`", NewMySQLDialect().QuoteIdentifier("users"))
}
