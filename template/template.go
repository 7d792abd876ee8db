// Package template rewrites SQL templates with :named placeholders into the
// positional form drivers accept, and remembers which positions each name
// occupied.
//
// A named placeholder is a colon followed by one or more of [A-Za-z0-9_].
// Every such token is replaced with a bare "?"; nothing else in the text is
// touched, including "?" placeholders the caller wrote by hand. The rewrite is
// purely lexical: tokens inside string literals or comments are rewritten too.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrUnknownParameter is returned when binding a name the template does not
// contain.
var ErrUnknownParameter = errors.New("parameter not found")

var namedParam = regexp.MustCompile(`:[_A-Za-z0-9]+`)

// Template is a parsed SQL template. It is immutable and safe to share.
type Template struct {
	source string
	sql    string
	slots  int
	names  map[string][]int
	order  []string
}

// Parse rewrites src and builds its placeholder map. Indices are zero-based
// positions among all placeholders of the rewritten SQL, so hand-written "?"
// placeholders before a name shift it right. A name used twice maps to both
// of its positions.
func Parse(src string) *Template {
	t := &Template{
		source: src,
		names:  make(map[string][]int),
	}
	slot, last := 0, 0
	for _, loc := range namedParam.FindAllStringIndex(src, -1) {
		slot += strings.Count(src[last:loc[0]], "?")
		name := src[loc[0]+1 : loc[1]]
		if _, seen := t.names[name]; !seen {
			t.order = append(t.order, name)
		}
		t.names[name] = append(t.names[name], slot)
		slot++
		last = loc[1]
	}
	t.sql = namedParam.ReplaceAllLiteralString(src, "?")
	t.slots = strings.Count(t.sql, "?")
	return t
}

// Source returns the template as written by the caller.
func (t *Template) Source() string { return t.source }

// SQL returns the rewritten statement with "?" placeholders only.
func (t *Template) SQL() string { return t.sql }

// NumSlots returns the number of positional placeholders in SQL.
func (t *Template) NumSlots() int { return t.slots }

// Names returns the distinct placeholder names in order of first appearance.
func (t *Template) Names() []string { return slices.Clone(t.order) }

// Indices returns the zero-based slots bound by name.
func (t *Template) Indices(name string) ([]int, error) {
	idx, ok := t.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return slices.Clone(idx), nil
}

// Placeholderer spells the n-th (one-based) positional placeholder.
type Placeholderer interface {
	Placeholder(n int) string
}

// Rebind renders SQL with the placeholders of d, for drivers such as pgx
// that do not accept "?".
func (t *Template) Rebind(d Placeholderer) string {
	if d == nil || d.Placeholder(1) == "?" {
		return t.sql
	}
	var b strings.Builder
	b.Grow(len(t.sql) + t.slots*2)
	n := 0
	for _, r := range t.sql {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
