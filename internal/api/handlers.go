package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/factwise/schema-mapper/internal/domain"
	"github.com/factwise/schema-mapper/internal/pkg/httputil"
	"github.com/factwise/schema-mapper/internal/service/mapping"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to temp files.
const maxUploadMemory = 32 << 20

// Handlers holds the HTTP handlers and their service dependency.
type Handlers struct {
	svc *mapping.Service
}

// NewHandlers creates the handler set.
func NewHandlers(svc *mapping.Service) *Handlers {
	return &Handlers{svc: svc}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "healthy"})
}

// Upload accepts a multipart form with the client file, an optional
// template file, sheet/header-row selections, optional formula rules, and
// an optional template to apply immediately.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httputil.BadRequest(w, "invalid multipart form")
		return
	}

	clientName, clientContent, err := formFile(r, "client_file")
	if err != nil {
		httputil.BadRequest(w, "client_file is required")
		return
	}
	templateName, templateContent, _ := formFile(r, "template_file")

	input := mapping.UploadInput{
		ClientFilename:    clientName,
		ClientContent:     clientContent,
		TemplateFilename:  templateName,
		TemplateContent:   templateContent,
		SheetName:         r.FormValue("sheet_name"),
		HeaderRow:         formInt(r, "header_row"),
		TemplateSheetName: r.FormValue("template_sheet_name"),
		TemplateHeaderRow: formInt(r, "template_header_row"),
		TemplateID:        r.FormValue("use_template_id"),
	}

	if raw := r.FormValue("formula_rules"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.FormulaRules); err != nil {
			httputil.BadRequest(w, "invalid formula_rules")
			return
		}
	}

	result, err := h.svc.Upload(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.Created(w, result)
}

// SessionHeaders returns the extracted headers and samples of a session.
func (h *Handlers) SessionHeaders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Headers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, result)
}

// Suggestions runs the header matcher for a session.
func (h *Handlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	entries, err := h.svc.Suggest(r.Context(), req.SessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"session_id": req.SessionID,
		"mappings":   entries,
	})
}

// SaveMapping stores the user's column mapping. The mappings field accepts
// any of the payload shapes the UI has sent over time.
func (h *Handlers) SaveMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID     string            `json:"session_id"`
		Mappings      json.RawMessage   `json:"mappings"`
		DefaultValues map[string]string `json:"default_values"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	if err := h.svc.SaveMappings(r.Context(), req.SessionID, req.Mappings, req.DefaultValues); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "saved"})
}

// Data returns one page of the transformed dataset. Sessions without saved
// mappings page through an empty dataset rather than erroring.
func (h *Handlers) Data(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	params := ParsePagination(r, mapping.DefaultPageSize, mapping.MaxPageSize)

	page, err := h.svc.Preview(r.Context(), sessionID, params.Page, params.Limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	data := map[string]interface{}{
		"headers": page.Headers,
		"rows":    page.Rows,
	}
	httputil.OK(w, NewPaginatedResponse(data, params, int64(page.TotalRows)))
}

// Download exports the transformed dataset and returns a download URL.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Format    string `json:"format"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.svc.Export(r.Context(), req.SessionID, req.Format)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"download_url": result.URL,
		"filename":     result.Filename,
		"key":          result.Key,
		"rows":         result.Rows,
	})
}

// ApplyFormulas replaces the session's formula rules.
func (h *Handlers) ApplyFormulas(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID    string               `json:"session_id"`
		FormulaRules []domain.FormulaRule `json:"formula_rules"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	if err := h.svc.SaveFormulaRules(r.Context(), req.SessionID, req.FormulaRules); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "saved"})
}

// Identity sets or clears the session's identity rule.
func (h *Handlers) Identity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID    string `json:"session_id"`
		FirstColumn  string `json:"first_column"`
		SecondColumn string `json:"second_column"`
		Operator     string `json:"operator"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	rule := domain.IdentityRule{
		FirstColumn:  req.FirstColumn,
		SecondColumn: req.SecondColumn,
		Operator:     req.Operator,
	}
	if err := h.svc.SetIdentityRule(r.Context(), req.SessionID, rule); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "saved"})
}

// ListTemplates returns all stored templates, newest first.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.svc.ListTemplates(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if templates == nil {
		templates = []*domain.MappingTemplate{}
	}
	httputil.OK(w, map[string]interface{}{"templates": templates})
}

// CreateTemplate saves a session's mapping state as a reusable template.
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req mapping.TemplateInput
	if !httputil.Decode(w, r, &req) {
		return
	}

	tpl, err := h.svc.SaveTemplate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.Created(w, tpl)
}

// GetTemplate returns one template by ID.
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.svc.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, tpl)
}

// DeleteTemplate removes a template by ID.
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "deleted"})
}

// writeServiceError maps service sentinel errors onto HTTP statuses.
// Anything unrecognized is logged and returned as a generic 500.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mapping.ErrSessionNotFound):
		httputil.NotFound(w, "session not found")
	case errors.Is(err, mapping.ErrTemplateNotFound):
		httputil.NotFound(w, "template not found")
	case errors.Is(err, mapping.ErrMissingFile),
		errors.Is(err, mapping.ErrNoMappings),
		errors.Is(err, mapping.ErrUnsupportedFormat):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func formFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, content, nil
}

func formInt(r *http.Request, field string) int {
	n, _ := strconv.Atoi(r.FormValue(field))
	return n
}
