package domain

// ColumnType selects what kind of derived column a formula rule produces.
type ColumnType string

const (
	// ColumnTypeTag produces a single Tag_N column.
	ColumnTypeTag ColumnType = "Tag"
	// ColumnTypeSpecification produces a Specification_Name_N /
	// Specification_Value_N column pair.
	ColumnTypeSpecification ColumnType = "Specification Value"
)

// SubRule is one search-text to output-value pattern inside a formula
// rule. Sub-rules are evaluated in order; the first substring hit wins.
type SubRule struct {
	SearchText    string `json:"search_text"`
	OutputValue   string `json:"output_value"`
	CaseSensitive bool   `json:"case_sensitive"`
}

// FormulaRule derives a new column by pattern-matching values of an
// existing source column against its sub-rules.
type FormulaRule struct {
	SourceColumn      string     `json:"source_column"`
	ColumnType        ColumnType `json:"column_type"`
	SpecificationName string     `json:"specification_name,omitempty"`
	SubRules          []SubRule  `json:"sub_rules"`
}

// Type returns the rule's column type, defaulting to Tag.
func (r FormulaRule) Type() ColumnType {
	if r.ColumnType == "" {
		return ColumnTypeTag
	}
	return r.ColumnType
}

// Inert reports whether the rule should be skipped entirely: no source
// column, no sub-rules, or a specification rule without a name.
func (r FormulaRule) Inert() bool {
	if r.SourceColumn == "" || len(r.SubRules) == 0 {
		return true
	}
	if r.Type() == ColumnTypeSpecification && r.SpecificationName == "" {
		return true
	}
	return false
}

// DefaultIdentityOperator joins the two identity columns when no operator
// is configured.
const DefaultIdentityOperator = "_"

// IdentityRule describes the composite identifier column: two existing
// columns joined by an operator. It is a pure specification; nothing is
// materialized until the rule is applied to a dataset.
type IdentityRule struct {
	FirstColumn  string `json:"first_column"`
	SecondColumn string `json:"second_column"`
	Operator     string `json:"operator,omitempty"`
}

// JoinOperator returns the configured operator or the default.
func (r IdentityRule) JoinOperator() string {
	if r.Operator == "" {
		return DefaultIdentityOperator
	}
	return r.Operator
}
