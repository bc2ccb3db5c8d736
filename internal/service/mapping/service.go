package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/factwise/schema-mapper/internal/domain"
	"github.com/factwise/schema-mapper/internal/matching"
	"github.com/factwise/schema-mapper/internal/pkg/logger"
	"github.com/factwise/schema-mapper/internal/storage"
	"github.com/factwise/schema-mapper/internal/tabular"
	"github.com/factwise/schema-mapper/internal/transform"
)

// Preview pagination bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// DefaultTemplateFuzzyRatio is the edit-ratio floor for matching a stored
// template header against a new client file's headers.
const DefaultTemplateFuzzyRatio = 0.70

// Deps wires the service to its stores and collaborators.
type Deps struct {
	Objects   ObjectStore
	Sessions  SessionStore
	Templates TemplateStore
	Extractor *tabular.Extractor
	Matcher   *matching.Matcher
	Cache     *PreviewCache

	// TemplateFuzzyRatio defaults to DefaultTemplateFuzzyRatio when zero.
	TemplateFuzzyRatio float64
}

// Service implements the mapping workflow business logic. All public
// methods are safe for concurrent use if the underlying stores are
// concurrency-safe.
type Service struct {
	objects    ObjectStore
	sessions   SessionStore
	templates  TemplateStore
	extractor  *tabular.Extractor
	matcher    *matching.Matcher
	cache      *PreviewCache
	fuzzyRatio float64
}

// NewService creates a mapping service from its dependencies.
func NewService(d Deps) *Service {
	ratio := d.TemplateFuzzyRatio
	if ratio <= 0 {
		ratio = DefaultTemplateFuzzyRatio
	}
	extractor := d.Extractor
	if extractor == nil {
		extractor = tabular.NewExtractor(0)
	}
	matcher := d.Matcher
	if matcher == nil {
		matcher = matching.NewMatcher(matching.DefaultMinConfidence)
	}
	return &Service{
		objects:    d.Objects,
		sessions:   d.Sessions,
		templates:  d.Templates,
		extractor:  extractor,
		matcher:    matcher,
		cache:      d.Cache,
		fuzzyRatio: ratio,
	}
}

// ==================== Upload ====================

// UploadInput carries the multipart form fields of an upload request.
// Header rows are 1-based as entered in the UI; zero means first row.
type UploadInput struct {
	ClientFilename    string
	ClientContent     []byte
	TemplateFilename  string
	TemplateContent   []byte
	SheetName         string
	HeaderRow         int
	TemplateSheetName string
	TemplateHeaderRow int
	FormulaRules      []domain.FormulaRule
	TemplateID        string
}

// UploadResult reports the created session and the headers found in the
// uploaded files.
type UploadResult struct {
	SessionID       string                  `json:"session_id"`
	ClientHeaders   []string                `json:"client_headers"`
	TemplateHeaders []string                `json:"template_headers,omitempty"`
	AppliedTemplate *domain.AppliedTemplate `json:"applied_template,omitempty"`
}

// Upload stores the uploaded files, creates a session, and optionally
// applies a stored template right away.
func (s *Service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if len(input.ClientContent) == 0 {
		return nil, ErrMissingFile
	}

	clientKey, err := s.objects.SaveUpload(ctx, input.ClientFilename, storage.RoleClient, input.ClientContent)
	if err != nil {
		return nil, fmt.Errorf("storing client file: %w", err)
	}

	var templateKey string
	if len(input.TemplateContent) > 0 {
		templateKey, err = s.objects.SaveUpload(ctx, input.TemplateFilename, storage.RoleTemplate, input.TemplateContent)
		if err != nil {
			return nil, fmt.Errorf("storing template file: %w", err)
		}
	}

	session := &domain.Session{
		ClientKey:         clientKey,
		TemplateKey:       templateKey,
		ClientFilename:    input.ClientFilename,
		TemplateFilename:  input.TemplateFilename,
		SheetName:         input.SheetName,
		HeaderRow:         input.HeaderRow,
		TemplateSheetName: input.TemplateSheetName,
		TemplateHeaderRow: input.TemplateHeaderRow,
		FormulaRules:      input.FormulaRules,
		Status:            domain.SessionStatusUploaded,
	}
	if session.HeaderRow < 1 {
		session.HeaderRow = 1
	}
	if session.TemplateHeaderRow < 1 {
		session.TemplateHeaderRow = 1
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	result := &UploadResult{
		SessionID:       session.ID,
		ClientHeaders:   s.extractor.Headers(input.ClientContent, session.SheetName, session.HeaderRowIndex()),
		TemplateHeaders: s.templateHeaders(session, input.TemplateContent),
	}

	if input.TemplateID != "" {
		applied, err := s.ApplyTemplate(ctx, session.ID, input.TemplateID)
		if err != nil {
			return nil, err
		}
		result.AppliedTemplate = applied
	}

	logger.Info("session created",
		"session_id", session.ID,
		"client_file", input.ClientFilename,
		"template_file", input.TemplateFilename)
	return result, nil
}

func (s *Service) templateHeaders(session *domain.Session, content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	return s.extractor.Headers(content, session.TemplateSheetName, session.TemplateHeaderRowIndex())
}

// ==================== Headers and suggestions ====================

// HeadersResult is the header view of one session.
type HeadersResult struct {
	SessionID       string              `json:"session_id"`
	ClientHeaders   []string            `json:"client_headers"`
	Samples         map[string][]string `json:"samples"`
	TemplateHeaders []string            `json:"template_headers,omitempty"`
}

// Headers returns the extracted headers and sample values of a session's
// files. Extraction failures degrade to empty results rather than errors.
func (s *Service) Headers(ctx context.Context, sessionID string) (*HeadersResult, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &HeadersResult{
		SessionID:     session.ID,
		ClientHeaders: []string{},
		Samples:       map[string][]string{},
	}

	if content, err := s.objects.GetObject(ctx, session.ClientKey); err == nil {
		result.ClientHeaders = s.extractor.Headers(content, session.SheetName, session.HeaderRowIndex())
		result.Samples = s.extractor.Samples(content, session.SheetName, session.HeaderRowIndex(), 0)
	} else {
		logger.Warn("client file unavailable", "session_id", session.ID, "error", err)
	}

	if session.TemplateKey != "" {
		if content, err := s.objects.GetObject(ctx, session.TemplateKey); err == nil {
			result.TemplateHeaders = s.extractor.Headers(content, session.TemplateSheetName, session.TemplateHeaderRowIndex())
		} else {
			logger.Warn("template file unavailable", "session_id", session.ID, "error", err)
		}
	}

	return result, nil
}

// Suggest matches the session's template headers against its client
// headers and returns one suggestion per template header.
func (s *Service) Suggest(ctx context.Context, sessionID string) ([]domain.MappingEntry, error) {
	headers, err := s.Headers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.matcher.Match(headers.TemplateHeaders, headers.ClientHeaders, headers.Samples), nil
}

// ==================== Session mutations ====================

// SaveMappings parses and stores the session's column mapping. The raw
// payload may use any of the accepted mapping shapes. defaults, when
// non-nil, replaces the session's default values.
func (s *Service) SaveMappings(ctx context.Context, sessionID string, raw json.RawMessage, defaults map[string]string) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	mapping, err := domain.ParseColumnMapping(raw)
	if err != nil {
		return fmt.Errorf("parsing mappings: %w", err)
	}
	if len(mapping.Entries) == 0 {
		return ErrNoMappings
	}

	session.Mappings = mapping
	if defaults != nil {
		session.DefaultValues = defaults
	}
	session.Status = domain.SessionStatusMapped

	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	s.cache.Invalidate(ctx, sessionID)
	return nil
}

// SaveFormulaRules replaces the session's formula rules.
func (s *Service) SaveFormulaRules(ctx context.Context, sessionID string, rules []domain.FormulaRule) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	session.FormulaRules = rules
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	s.cache.Invalidate(ctx, sessionID)
	return nil
}

// SetIdentityRule replaces the session's identity rule. A rule with both
// columns empty clears it.
func (s *Service) SetIdentityRule(ctx context.Context, sessionID string, rule domain.IdentityRule) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if rule.FirstColumn == "" && rule.SecondColumn == "" {
		session.IdentityRule = nil
	} else {
		session.IdentityRule = &rule
	}
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	s.cache.Invalidate(ctx, sessionID)
	return nil
}

// DeleteSession removes a session and its cached preview.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return s.translateSessionErr(err)
	}
	s.cache.Invalidate(ctx, sessionID)
	return nil
}

// ==================== Preview and export ====================

// PreviewPage is one page of the transformed dataset.
type PreviewPage struct {
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalRows  int        `json:"total_rows"`
	TotalPages int        `json:"total_pages"`
}

// Preview runs the full transformation pipeline and returns the requested
// page. A session without saved mappings previews as an empty dataset.
func (s *Service) Preview(ctx context.Context, sessionID string, page, pageSize int) (*PreviewPage, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	dataset, err := s.transformedDataset(ctx, session)
	if errors.Is(err, ErrNoMappings) {
		dataset = transform.Empty()
	} else if err != nil {
		return nil, err
	}

	return paginate(dataset, page, pageSize), nil
}

func paginate(d *transform.Dataset, page, pageSize int) *PreviewPage {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(d.Rows)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &PreviewPage{
		Headers:    d.Headers,
		Rows:       d.Rows[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalRows:  total,
		TotalPages: totalPages,
	}
}

// ExportResult describes a stored export and its download URL.
type ExportResult struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
}

// Export runs the pipeline, serializes the result as xlsx or csv, stores
// it under the session's processed prefix, and returns a presigned URL.
func (s *Service) Export(ctx context.Context, sessionID, format string) (*ExportResult, error) {
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "csv" {
		return nil, ErrUnsupportedFormat
	}

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	dataset, err := s.transformedDataset(ctx, session)
	if err != nil {
		return nil, err
	}

	var content []byte
	if format == "xlsx" {
		content, err = tabular.WriteXLSX(dataset.Headers, dataset.Rows)
	} else {
		content, err = tabular.WriteCSV(dataset.Headers, dataset.Rows)
	}
	if err != nil {
		return nil, fmt.Errorf("serializing export: %w", err)
	}

	filename := exportFilename(session.ClientFilename, format)
	key, err := s.objects.SaveProcessed(ctx, session.ID, filename, content)
	if err != nil {
		return nil, fmt.Errorf("storing export: %w", err)
	}

	url, err := s.objects.PresignDownload(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presigning export: %w", err)
	}

	logger.Info("export stored", "session_id", session.ID, "key", key, "rows", len(dataset.Rows))
	return &ExportResult{
		Key:      key,
		URL:      url,
		Filename: filename,
		Rows:     len(dataset.Rows),
	}, nil
}

func exportFilename(clientFilename, format string) string {
	base := strings.TrimSuffix(filepath.Base(clientFilename), filepath.Ext(clientFilename))
	if base == "" || base == "." {
		base = "export"
	}
	return base + "_mapped." + format
}

// transformedDataset builds (or fetches from cache) the fully transformed
// dataset for a session: remap, formula rules, identity, defaults.
func (s *Service) transformedDataset(ctx context.Context, session *domain.Session) (*transform.Dataset, error) {
	if session.Mappings == nil || len(session.Mappings.Entries) == 0 {
		return nil, ErrNoMappings
	}

	if dataset, ok := s.cache.Get(ctx, session.ID); ok {
		return dataset, nil
	}

	content, err := s.objects.GetObject(ctx, session.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("loading client file: %w", err)
	}
	headers, rows := s.extractor.Rows(content, session.SheetName, session.HeaderRowIndex())

	dataset, err := transform.Remap(headers, rows, session.Mappings)
	if err != nil {
		return nil, err
	}
	dataset, _ = transform.ApplyRules(dataset, session.FormulaRules)
	dataset = transform.SynthesizeIdentity(dataset, session.IdentityRule)
	dataset = transform.ApplyDefaults(dataset, session.DefaultValues)

	s.cache.Set(ctx, session.ID, dataset)
	return dataset, nil
}

// ==================== Templates ====================

// TemplateInput is the payload for saving a template. When SessionID is
// set, the session's saved mappings and rules are captured.
type TemplateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SessionID   string `json:"session_id"`
}

// SaveTemplate captures a session's mapping state as a reusable template.
func (s *Service) SaveTemplate(ctx context.Context, input TemplateInput) (*domain.MappingTemplate, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("template name is required")
	}

	tpl := &domain.MappingTemplate{
		Name:        input.Name,
		Description: input.Description,
		Mappings:    map[string]string{},
	}

	if input.SessionID != "" {
		session, err := s.getSession(ctx, input.SessionID)
		if err != nil {
			return nil, err
		}
		if session.Mappings == nil || len(session.Mappings.Entries) == 0 {
			return nil, ErrNoMappings
		}
		for _, pair := range session.Mappings.Entries {
			if _, seen := tpl.Mappings[pair.Target]; !seen {
				tpl.Mappings[pair.Target] = pair.Source
			}
		}
		tpl.FormulaRules = session.FormulaRules
		tpl.IdentityRule = session.IdentityRule
		tpl.DefaultValues = session.DefaultValues
	}

	if err := s.templates.SaveTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("saving template: %w", err)
	}
	logger.Info("template saved", "template_id", tpl.ID, "name", tpl.Name)
	return tpl, nil
}

// ListTemplates returns all stored templates, newest first.
func (s *Service) ListTemplates(ctx context.Context) ([]*domain.MappingTemplate, error) {
	return s.templates.ListTemplates(ctx)
}

// GetTemplate returns one template by ID.
func (s *Service) GetTemplate(ctx context.Context, id string) (*domain.MappingTemplate, error) {
	tpl, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tpl, nil
}

// DeleteTemplate removes a template by ID.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	return nil
}

// ApplyTemplate matches a stored template against the session's client
// headers: exact header match first, then the best edit-ratio candidate
// above the fuzzy floor. Matched mappings and the template's rules are
// written into the session.
func (s *Service) ApplyTemplate(ctx context.Context, sessionID, templateID string) (*domain.AppliedTemplate, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	content, err := s.objects.GetObject(ctx, session.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("loading client file: %w", err)
	}
	clientHeaders := s.extractor.Headers(content, session.SheetName, session.HeaderRowIndex())

	applied := &domain.AppliedTemplate{
		Mappings:             map[string]string{},
		TotalTemplateColumns: len(tpl.Mappings),
		FormulaRules:         tpl.FormulaRules,
		IdentityRule:         tpl.IdentityRule,
		DefaultValues:        tpl.DefaultValues,
	}

	// Template iteration is sorted so repeated applies give the same
	// column order.
	targets := make([]string, 0, len(tpl.Mappings))
	for target := range tpl.Mappings {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	var entries []domain.MappingPair
	scorer := s.matcher.Scorer()
	for _, target := range targets {
		saved := tpl.Mappings[target]
		matched := matchHeader(scorer, saved, clientHeaders, s.fuzzyRatio)
		if matched == "" {
			continue
		}
		applied.Mappings[target] = matched
		entries = append(entries, domain.MappingPair{Source: matched, Target: target})
	}
	applied.TotalMapped = len(applied.Mappings)

	if len(entries) > 0 {
		session.Mappings = &domain.ColumnMapping{Entries: entries}
		session.Status = domain.SessionStatusMapped
	}
	if len(tpl.FormulaRules) > 0 {
		session.FormulaRules = tpl.FormulaRules
	}
	if tpl.IdentityRule != nil {
		session.IdentityRule = tpl.IdentityRule
	}
	if len(tpl.DefaultValues) > 0 {
		session.DefaultValues = tpl.DefaultValues
	}
	session.TemplateID = tpl.ID

	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	s.cache.Invalidate(ctx, sessionID)

	if err := s.templates.IncrementTemplateUsage(ctx, tpl.ID); err != nil {
		logger.Warn("could not bump template usage", "template_id", tpl.ID, "error", err)
	}

	logger.Info("template applied",
		"session_id", sessionID,
		"template_id", tpl.ID,
		"mapped", applied.TotalMapped,
		"total", applied.TotalTemplateColumns)
	return applied, nil
}

// matchHeader finds the client header for one remembered template source:
// exact match wins, otherwise the highest edit ratio above the floor.
func matchHeader(scorer *matching.Scorer, saved string, clientHeaders []string, floor float64) string {
	for _, h := range clientHeaders {
		if h == saved {
			return h
		}
	}

	best := ""
	bestRatio := floor
	for _, h := range clientHeaders {
		ratio := scorer.EditRatio(strings.ToLower(saved), strings.ToLower(h))
		if ratio > bestRatio {
			best = h
			bestRatio = ratio
		}
	}
	return best
}

// ==================== Helpers ====================

func (s *Service) getSession(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, s.translateSessionErr(err)
	}
	return session, nil
}

func (s *Service) translateSessionErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}
