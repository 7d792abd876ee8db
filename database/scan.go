package database

// ScanValues reads the current row into freshly allocated values, one per
// column. []byte values are copied into strings so they outlive the row.
func ScanValues(row Row) ([]string, []any, error) {
	cols, err := row.Columns()
	if err != nil {
		return nil, nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, nil, Wrap("scan row", err)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return cols, vals, nil
}

// ScanMap reads the current row into a column name to value map.
func ScanMap(row Row) (map[string]any, error) {
	cols, vals, err := ScanValues(row)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		m[c] = vals[i]
	}
	return m, nil
}
