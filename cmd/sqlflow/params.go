package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Konsultn-Engineering/sqlflow/bind"
	"github.com/Konsultn-Engineering/sqlflow/engine"
)

// parseParam reads "name=value" or "name:type=value".
func parseParam(s string) (engine.NamedArg, error) {
	key, raw, ok := strings.Cut(s, "=")
	if !ok {
		return engine.NamedArg{}, fmt.Errorf("parameter %q: expected name=value", s)
	}
	name, typ, _ := strings.Cut(key, ":")
	if name == "" {
		return engine.NamedArg{}, fmt.Errorf("parameter %q: empty name", s)
	}
	v, err := parseValue(typ, raw)
	if err != nil {
		return engine.NamedArg{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	return engine.Arg(name, v), nil
}

// parseArg reads a positional value. A "type:" prefix is honored only when it
// names a known type, so "12:30" stays a string.
func parseArg(s string) (any, error) {
	if typ, raw, ok := strings.Cut(s, ":"); ok {
		if _, known := valueParsers[typ]; known {
			return parseValue(typ, raw)
		}
	}
	return s, nil
}

var valueParsers = map[string]func(string) (any, error){
	"string": func(s string) (any, error) { return s, nil },
	"int": func(s string) (any, error) {
		return strconv.ParseInt(s, 10, 64)
	},
	"float": func(s string) (any, error) {
		return strconv.ParseFloat(s, 64)
	},
	"bool": func(s string) (any, error) {
		return strconv.ParseBool(s)
	},
	"null": func(string) (any, error) { return nil, nil },
	"date": func(s string) (any, error) {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, err
		}
		return bind.DateOf(t), nil
	},
	"time": func(s string) (any, error) {
		t, err := time.Parse(time.TimeOnly, s)
		if err != nil {
			return nil, err
		}
		return bind.TimeOfDayOf(t), nil
	},
	"timestamp": func(s string) (any, error) {
		return time.Parse(time.RFC3339Nano, s)
	},
	"decimal": func(s string) (any, error) {
		return bind.ParseDecimal(s)
	},
	"uuid": func(s string) (any, error) {
		return uuid.Parse(s)
	},
	"hex": func(s string) (any, error) {
		return hex.DecodeString(s)
	},
}

func parseValue(typ, raw string) (any, error) {
	if typ == "" {
		typ = "string"
	}
	parse, ok := valueParsers[typ]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", typ)
	}
	return parse(raw)
}
