package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factwise/schema-mapper/internal/domain"
)

func testDataset() *Dataset {
	return &Dataset{
		Headers: []string{"item_name", "quantity"},
		Rows: [][]string{
			{"Steel hex bolt M8", "10"},
			{"Nylon washer", "200"},
			{"Brass insert", "50"},
		},
	}
}

func TestApplyRulesTag(t *testing.T) {
	rules := []domain.FormulaRule{{
		SourceColumn: "item_name",
		ColumnType:   domain.ColumnTypeTag,
		SubRules: []domain.SubRule{
			{SearchText: "bolt", OutputValue: "Fastener"},
			{SearchText: "washer", OutputValue: "Hardware"},
		},
	}}

	out, created := ApplyRules(testDataset(), rules)
	assert.Equal(t, []string{"Tag_1"}, created)
	assert.Equal(t, []string{"item_name", "quantity", "Tag_1"}, out.Headers)

	assert.Equal(t, "Fastener", out.Rows[0][2])
	assert.Equal(t, "Hardware", out.Rows[1][2])
	assert.Equal(t, "", out.Rows[2][2], "no sub-rule hit leaves the cell empty")
}

func TestApplyRulesFirstMatchWins(t *testing.T) {
	rules := []domain.FormulaRule{{
		SourceColumn: "item_name",
		SubRules: []domain.SubRule{
			{SearchText: "steel", OutputValue: "Metal"},
			{SearchText: "bolt", OutputValue: "Fastener"},
		},
	}}

	out, _ := ApplyRules(testDataset(), rules)
	// "Steel hex bolt M8" matches both; only the first sub-rule fires.
	assert.Equal(t, "Metal", out.Rows[0][2])
}

func TestApplyRulesCaseSensitivity(t *testing.T) {
	rules := []domain.FormulaRule{{
		SourceColumn: "item_name",
		SubRules: []domain.SubRule{
			{SearchText: "STEEL", OutputValue: "CaseHit", CaseSensitive: true},
			{SearchText: "STEEL", OutputValue: "FoldHit"},
		},
	}}

	out, _ := ApplyRules(testDataset(), rules)
	// Case-sensitive "STEEL" misses "Steel hex bolt M8"; the folded
	// sub-rule catches it.
	assert.Equal(t, "FoldHit", out.Rows[0][2])
}

func TestApplyRulesSpecificationPair(t *testing.T) {
	rules := []domain.FormulaRule{{
		SourceColumn:      "item_name",
		ColumnType:        domain.ColumnTypeSpecification,
		SpecificationName: "Material",
		SubRules: []domain.SubRule{
			{SearchText: "steel", OutputValue: "Steel"},
			{SearchText: "nylon", OutputValue: "Nylon"},
			{SearchText: "brass", OutputValue: "Brass"},
		},
	}}

	out, created := ApplyRules(testDataset(), rules)
	assert.Equal(t, []string{"Specification_Name_1", "Specification_Value_1"}, created)

	nameIdx, valueIdx := 2, 3
	for _, row := range out.Rows {
		assert.Equal(t, "Material", row[nameIdx], "name column is statically filled")
	}
	assert.Equal(t, "Steel", out.Rows[0][valueIdx])
	assert.Equal(t, "Nylon", out.Rows[1][valueIdx])
	assert.Equal(t, "Brass", out.Rows[2][valueIdx])
}

func TestApplyRulesCounterSkipsExistingColumns(t *testing.T) {
	d := testDataset()
	d.Headers = append(d.Headers, "Tag_1")
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], "preexisting")
	}

	rules := []domain.FormulaRule{
		{SourceColumn: "item_name", SubRules: []domain.SubRule{{SearchText: "bolt", OutputValue: "A"}}},
		{SourceColumn: "item_name", SubRules: []domain.SubRule{{SearchText: "washer", OutputValue: "B"}}},
	}

	out, created := ApplyRules(d, rules)
	assert.Equal(t, []string{"Tag_2", "Tag_3"}, created)
	assert.Equal(t, "preexisting", out.Rows[0][2], "existing column untouched")
}

func TestApplyRulesInertRulesSkipped(t *testing.T) {
	rules := []domain.FormulaRule{
		{SourceColumn: "", SubRules: []domain.SubRule{{SearchText: "x", OutputValue: "y"}}},
		{SourceColumn: "item_name"},
		{
			SourceColumn: "item_name",
			ColumnType:   domain.ColumnTypeSpecification,
			SubRules:     []domain.SubRule{{SearchText: "x", OutputValue: "y"}},
		},
	}

	out, created := ApplyRules(testDataset(), rules)
	assert.Empty(t, created)
	assert.Equal(t, testDataset().Headers, out.Headers)
}

func TestApplyRulesEmptySubRuleFieldsSkipped(t *testing.T) {
	rules := []domain.FormulaRule{{
		SourceColumn: "item_name",
		SubRules: []domain.SubRule{
			{SearchText: "", OutputValue: "Never"},
			{SearchText: "bolt", OutputValue: ""},
			{SearchText: "bolt", OutputValue: "Fastener"},
		},
	}}

	out, _ := ApplyRules(testDataset(), rules)
	assert.Equal(t, "Fastener", out.Rows[0][2])
}

func TestApplyRulesUnknownSourceStillAllocatesColumn(t *testing.T) {
	rules := []domain.FormulaRule{{
		SourceColumn: "no_such_column",
		SubRules:     []domain.SubRule{{SearchText: "x", OutputValue: "y"}},
	}}

	out, created := ApplyRules(testDataset(), rules)
	require.Equal(t, []string{"Tag_1"}, created)
	for _, row := range out.Rows {
		assert.Equal(t, "", row[2])
	}
}

func TestApplyRulesDoesNotMutateInput(t *testing.T) {
	d := testDataset()
	rules := []domain.FormulaRule{{
		SourceColumn: "item_name",
		SubRules:     []domain.SubRule{{SearchText: "bolt", OutputValue: "Fastener"}},
	}}

	ApplyRules(d, rules)
	assert.Equal(t, []string{"item_name", "quantity"}, d.Headers)
	assert.Len(t, d.Rows[0], 2)
}

func TestAccumulate(t *testing.T) {
	assert.Equal(t, "A", accumulate("", "A"))
	assert.Equal(t, "A", accumulate("A", "A"))
	assert.Equal(t, "A, B", accumulate("A", "B"))
	assert.Equal(t, "A, B", accumulate("A, B", "B"), "already present values are not repeated")
	assert.Equal(t, "A, B, C", accumulate("A, B", "C"))
}
