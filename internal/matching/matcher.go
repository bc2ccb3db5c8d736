package matching

import (
	"fmt"

	"github.com/factwise/schema-mapper/internal/domain"
)

// DefaultMinConfidence is the confidence floor below which a template
// header stays unmapped.
const DefaultMinConfidence = 40

// maxSamplePreview caps how many sample values ride along on a mapping
// entry.
const maxSamplePreview = 3

// Matcher assigns each template header to at most one client header using
// greedy best-score selection. The assignment is non-backtracking: once a
// client header is claimed it is unavailable to later template headers,
// even if a later pairing would have scored higher. This matches the
// historical behavior and keeps output stable; an optimal bipartite
// assignment would be a versioned behavior change.
type Matcher struct {
	scorer        *Scorer
	minConfidence int
}

// NewMatcher returns a Matcher with the given confidence floor
// (DefaultMinConfidence when non-positive).
func NewMatcher(minConfidence int) *Matcher {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Matcher{scorer: NewScorer(), minConfidence: minConfidence}
}

// Scorer exposes the underlying scorer for callers that need raw ratios.
func (m *Matcher) Scorer() *Scorer {
	return m.scorer
}

// Match walks template headers in order and picks, for each, the
// unclaimed client header with the strictly highest combined score. Ties
// keep the earlier client header because the comparison is strict.
// samples supplies preview values per client header and may be nil.
func (m *Matcher) Match(templateHeaders, clientHeaders []string, samples map[string][]string) []domain.MappingEntry {
	used := make(map[string]bool, len(clientHeaders))
	entries := make([]domain.MappingEntry, 0, len(templateHeaders))

	for _, tmpl := range templateHeaders {
		var (
			bestHeader  string
			bestScore   float64
			explanation string
		)

		for _, client := range clientHeaders {
			if used[client] {
				continue
			}
			s := m.scorer.Score(tmpl, client)
			if s.Combined > bestScore {
				bestScore = s.Combined
				bestHeader = client
				if s.Semantic > 0 {
					explanation = fmt.Sprintf("Semantic match (score: %.2f)", s.Semantic)
				} else {
					explanation = fmt.Sprintf("Fuzzy match (score: %.2f)", s.Combined)
				}
			}
		}

		confidence := Score{Combined: bestScore}.Confidence()

		entry := domain.MappingEntry{
			TemplateHeader: tmpl,
			Confidence:     confidence,
			Explanation:    explanation,
			SampleData:     []string{},
		}
		if bestHeader != "" && confidence >= m.minConfidence {
			used[bestHeader] = true
			entry.MappedClientHeader = bestHeader
			if values := samples[bestHeader]; len(values) > 0 {
				n := len(values)
				if n > maxSamplePreview {
					n = maxSamplePreview
				}
				entry.SampleData = append(entry.SampleData, values[:n]...)
			}
		}
		entries = append(entries, entry)
	}

	return entries
}
