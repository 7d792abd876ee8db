package template

import (
	"log/slog"
	"strings"
)

// Renderer renders a bound value as a SQL literal.
type Renderer interface {
	RenderValue(v any) string
}

// Interpolate inlines args into the "?" placeholders of sql. The result is
// for humans reading logs; it is never sent to a database.
func Interpolate(sql string, args []any, r Renderer) string {
	var b strings.Builder
	b.Grow(len(sql) + len(args)*8)
	n := 0
	for _, c := range sql {
		if c == '?' && n < len(args) {
			b.WriteString(r.RenderValue(args[n]))
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Statement defers interpolation until a log handler asks for the value, so
// disabled debug logging costs nothing.
type Statement struct {
	SQL      string
	Args     []any
	Renderer Renderer
}

func (s Statement) LogValue() slog.Value {
	if s.Renderer == nil {
		return slog.StringValue(s.SQL)
	}
	return slog.StringValue(Interpolate(s.SQL, s.Args, s.Renderer))
}

var _ slog.LogValuer = Statement{}
