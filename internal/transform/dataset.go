package transform

// Dataset is an ordered header list plus rows aligned to it. Headers are
// unique within a dataset; derived columns are appended (or, for the
// identity column, prepended), existing columns are never removed.
type Dataset struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Empty returns a dataset with no columns and no rows.
func Empty() *Dataset {
	return &Dataset{Headers: []string{}, Rows: [][]string{}}
}

// headerIndex maps each header to its column position.
func (d *Dataset) headerIndex() map[string]int {
	idx := make(map[string]int, len(d.Headers))
	for i, h := range d.Headers {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

// HasHeader reports whether the dataset contains the named column.
func (d *Dataset) HasHeader(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// clone copies headers and rows so rule application never mutates the
// caller's dataset.
func (d *Dataset) clone() *Dataset {
	headers := make([]string, len(d.Headers))
	copy(headers, d.Headers)
	rows := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		r := make([]string, len(row))
		copy(r, row)
		rows[i] = r
	}
	return &Dataset{Headers: headers, Rows: rows}
}
