package transform

import "strings"

// ApplyDefaults fills empty cells of each named column with its default
// value. Columns not present in the dataset are ignored.
func ApplyDefaults(d *Dataset, defaults map[string]string) *Dataset {
	if len(defaults) == 0 || len(d.Rows) == 0 {
		return d
	}
	idx := d.headerIndex()

	out := d.clone()
	for col, value := range defaults {
		if value == "" {
			continue
		}
		colIdx, ok := idx[col]
		if !ok {
			continue
		}
		for _, row := range out.Rows {
			if colIdx < len(row) && strings.TrimSpace(row[colIdx]) == "" {
				row[colIdx] = value
			}
		}
	}
	return out
}
