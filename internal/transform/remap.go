package transform

import (
	"fmt"
	"strings"

	"github.com/factwise/schema-mapper/internal/domain"
)

// Remap projects client rows into the target schema. Mapping entries are
// grouped by target column in first-occurrence order; every entry produces
// one output column, so fan-out (one target fed by several sources)
// produces several columns whose headers are disambiguated with a numeric
// suffix: target, target_2, target_3, ...
//
// Missing or unknown source columns produce empty strings, never errors.
// A nil or empty mapping is an error so callers can tell "nothing to map"
// from a legitimately empty input file.
func Remap(clientHeaders []string, clientRows [][]string, mapping *domain.ColumnMapping) (*Dataset, error) {
	if mapping == nil || len(mapping.Entries) == 0 {
		return Empty(), fmt.Errorf("no column mappings to apply")
	}

	// Group entries by target, preserving first-occurrence target order.
	var targetOrder []string
	grouped := make(map[string][]domain.MappingPair, len(mapping.Entries))
	for _, entry := range mapping.Entries {
		if _, ok := grouped[entry.Target]; !ok {
			targetOrder = append(targetOrder, entry.Target)
		}
		grouped[entry.Target] = append(grouped[entry.Target], entry)
	}

	sourceIdx := make(map[string]int, len(clientHeaders))
	for i, h := range clientHeaders {
		if _, ok := sourceIdx[h]; !ok {
			sourceIdx[h] = i
		}
	}

	headers := buildHeaders(targetOrder, grouped)

	rows := make([][]string, 0, len(clientRows))
	for _, clientRow := range clientRows {
		row := make([]string, 0, len(headers))
		for _, target := range targetOrder {
			for _, pair := range grouped[target] {
				idx, ok := sourceIdx[pair.Source]
				if pair.Source == "" || !ok || idx >= len(clientRow) {
					row = append(row, "")
					continue
				}
				row = append(row, strings.TrimSpace(clientRow[idx]))
			}
		}
		rows = append(rows, row)
	}

	return &Dataset{Headers: headers, Rows: rows}, nil
}

// buildHeaders emits one header per mapping entry. The first column for a
// target keeps the bare name; later ones get _2, _3, ... skipping any
// suffix that would collide with a header already produced.
func buildHeaders(targetOrder []string, grouped map[string][]domain.MappingPair) []string {
	headers := make([]string, 0)
	counts := make(map[string]int)

	// Seed with every declared target so a fan-out suffix can never
	// collide with a target that appears later in the mapping.
	produced := make(map[string]bool, len(targetOrder))
	for _, target := range targetOrder {
		produced[target] = true
	}

	for _, target := range targetOrder {
		for range grouped[target] {
			if counts[target] == 0 {
				counts[target] = 1
				headers = append(headers, target)
				continue
			}
			counts[target]++
			name := fmt.Sprintf("%s_%d", target, counts[target])
			for produced[name] {
				counts[target]++
				name = fmt.Sprintf("%s_%d", target, counts[target])
			}
			headers = append(headers, name)
			produced[name] = true
		}
	}
	return headers
}
