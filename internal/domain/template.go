package domain

import "time"

// MappingTemplate is a reusable mapping saved by the user: template column
// to the source header it was mapped from, plus any rules that went with
// it. Applying a template fuzzy-matches the remembered source headers
// against a new client file's headers.
type MappingTemplate struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Mappings      map[string]string `json:"mappings"`
	FormulaRules  []FormulaRule     `json:"formula_rules,omitempty"`
	IdentityRule  *IdentityRule     `json:"identity_rule,omitempty"`
	DefaultValues map[string]string `json:"default_values,omitempty"`
	UsageCount    int               `json:"usage_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// AppliedTemplate is the result of matching a stored template against a
// concrete client file's headers.
type AppliedTemplate struct {
	Mappings             map[string]string `json:"mappings"`
	TotalMapped          int               `json:"total_mapped"`
	TotalTemplateColumns int               `json:"total_template_columns"`
	FormulaRules         []FormulaRule     `json:"formula_rules,omitempty"`
	IdentityRule         *IdentityRule     `json:"identity_rule,omitempty"`
	DefaultValues        map[string]string `json:"default_values,omitempty"`
}
