package transform

import (
	"fmt"
	"strings"

	"github.com/factwise/schema-mapper/internal/domain"
)

// ApplyRules runs formula rules in order against the dataset and returns a
// new dataset with the derived columns appended, plus the list of column
// names created. Inert rules (no source column, no sub-rules, or a
// specification rule without a name) are skipped without allocating a
// column. Column counters are shared across all rules of one invocation so
// generated names never collide.
func ApplyRules(d *Dataset, rules []domain.FormulaRule) (*Dataset, []string) {
	newColumns := []string{}
	if len(rules) == 0 || len(d.Rows) == 0 {
		return d, newColumns
	}

	out := d.clone()
	used := make(map[string]bool, len(out.Headers))
	for _, h := range out.Headers {
		used[h] = true
	}
	tagCounter, specCounter := 1, 1

	for _, rule := range rules {
		if rule.Inert() {
			continue
		}

		switch rule.Type() {
		case domain.ColumnTypeTag:
			name := fmt.Sprintf("Tag_%d", tagCounter)
			for used[name] {
				tagCounter++
				name = fmt.Sprintf("Tag_%d", tagCounter)
			}
			used[name] = true
			tagCounter++

			appendColumn(out, name, "")
			newColumns = append(newColumns, name)
			fillMatches(out, rule, name)

		case domain.ColumnTypeSpecification:
			nameCol := fmt.Sprintf("Specification_Name_%d", specCounter)
			valueCol := fmt.Sprintf("Specification_Value_%d", specCounter)
			for used[nameCol] || used[valueCol] {
				specCounter++
				nameCol = fmt.Sprintf("Specification_Name_%d", specCounter)
				valueCol = fmt.Sprintf("Specification_Value_%d", specCounter)
			}
			used[nameCol], used[valueCol] = true, true
			specCounter++

			appendColumn(out, nameCol, rule.SpecificationName)
			appendColumn(out, valueCol, "")
			newColumns = append(newColumns, nameCol, valueCol)
			fillMatches(out, rule, valueCol)
		}
	}

	return out, newColumns
}

// appendColumn adds a header and fills every row with the initial value.
func appendColumn(d *Dataset, name, initial string) {
	d.Headers = append(d.Headers, name)
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], initial)
	}
}

// fillMatches evaluates the rule's sub-rules against every row's source
// cell and writes the first hit into the target column, accumulating
// distinct values as a comma-separated list when the column already holds
// a different one.
func fillMatches(d *Dataset, rule domain.FormulaRule, targetCol string) {
	idx := d.headerIndex()
	targetIdx := idx[targetCol]
	sourceIdx, hasSource := idx[rule.SourceColumn]

	for _, row := range d.Rows {
		var cell string
		if hasSource && sourceIdx < len(row) {
			cell = row[sourceIdx]
		}

		for _, sub := range rule.SubRules {
			if sub.SearchText == "" || sub.OutputValue == "" {
				continue
			}
			if !containsFold(cell, sub.SearchText, sub.CaseSensitive) {
				continue
			}
			row[targetIdx] = accumulate(row[targetIdx], sub.OutputValue)
			break
		}
	}
}

func containsFold(haystack, needle string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(haystack, needle)
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// accumulate merges value into existing: set when empty or equal,
// otherwise append comma-separated unless already present.
func accumulate(existing, value string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" || existing == value {
		return value
	}
	for _, part := range strings.Split(existing, ",") {
		if strings.TrimSpace(part) == value {
			return existing
		}
	}
	return existing + ", " + value
}
