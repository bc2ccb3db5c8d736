package domain

import "time"

// Session status values.
const (
	SessionStatusUploaded = "uploaded"
	SessionStatusMapped   = "mapped"
)

// Session ties an uploaded client/template file pair to the mapping and
// rule state accumulated while the user works through a transformation.
// Header rows are 1-based as entered in the UI.
type Session struct {
	ID                string            `json:"session_id"`
	ClientKey         string            `json:"client_key"`
	TemplateKey       string            `json:"template_key"`
	ClientFilename    string            `json:"client_filename"`
	TemplateFilename  string            `json:"template_filename"`
	SheetName         string            `json:"sheet_name,omitempty"`
	HeaderRow         int               `json:"header_row"`
	TemplateSheetName string            `json:"template_sheet_name,omitempty"`
	TemplateHeaderRow int               `json:"template_header_row"`
	Mappings          *ColumnMapping    `json:"mappings,omitempty"`
	FormulaRules      []FormulaRule     `json:"formula_rules,omitempty"`
	IdentityRule      *IdentityRule     `json:"identity_rule,omitempty"`
	DefaultValues     map[string]string `json:"default_values,omitempty"`
	TemplateID        string            `json:"template_id,omitempty"`
	Status            string            `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// HeaderRowIndex converts the 1-based client header row to a zero-based
// extractor index.
func (s *Session) HeaderRowIndex() int {
	if s.HeaderRow < 1 {
		return 0
	}
	return s.HeaderRow - 1
}

// TemplateHeaderRowIndex converts the 1-based template header row to a
// zero-based extractor index.
func (s *Session) TemplateHeaderRowIndex() int {
	if s.TemplateHeaderRow < 1 {
		return 0
	}
	return s.TemplateHeaderRow - 1
}
