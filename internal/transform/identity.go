package transform

import (
	"strings"

	"github.com/factwise/schema-mapper/internal/domain"
)

// IdentityColumn is the name of the synthesized identifier column. It is
// always prepended so downstream consumers find it first.
const IdentityColumn = "Factwise_ID"

// SynthesizeIdentity prepends a Factwise_ID column built by joining the
// rule's two source columns with its operator. Rows where only one side
// has a value use that value alone; rows with neither stay empty. If
// either configured column is missing from the dataset the input is
// returned unchanged.
func SynthesizeIdentity(d *Dataset, rule *domain.IdentityRule) *Dataset {
	if rule == nil || rule.FirstColumn == "" || rule.SecondColumn == "" {
		return d
	}
	idx := d.headerIndex()
	firstIdx, okFirst := idx[rule.FirstColumn]
	secondIdx, okSecond := idx[rule.SecondColumn]
	if !okFirst || !okSecond {
		return d
	}

	op := rule.JoinOperator()
	out := &Dataset{
		Headers: append([]string{IdentityColumn}, d.Headers...),
		Rows:    make([][]string, len(d.Rows)),
	}
	for i, row := range d.Rows {
		var first, second string
		if firstIdx < len(row) {
			first = strings.TrimSpace(row[firstIdx])
		}
		if secondIdx < len(row) {
			second = strings.TrimSpace(row[secondIdx])
		}

		var id string
		switch {
		case first != "" && second != "":
			id = first + op + second
		case first != "":
			id = first
		case second != "":
			id = second
		}
		out.Rows[i] = append([]string{id}, row...)
	}
	return out
}
