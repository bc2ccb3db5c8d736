package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MappingPair binds one template (target) column to one client (source)
// column.
type MappingPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ColumnMapping is an ordered list of target/source pairs. A target may
// appear more than once when several source columns feed the same template
// column (fan-out); output header disambiguation happens in the remapper.
type ColumnMapping struct {
	Entries []MappingPair `json:"mappings"`
}

// MappingEntry is a single header-match suggestion produced by the matcher.
// MappedClientHeader is empty when no client header cleared the confidence
// threshold.
type MappingEntry struct {
	TemplateHeader     string   `json:"template_header"`
	MappedClientHeader string   `json:"mapped_client_header"`
	Confidence         int      `json:"confidence"`
	Explanation        string   `json:"explanation"`
	SampleData         []string `json:"sample_data"`
}

// ParseColumnMapping normalizes the mapping payload shapes the API has
// accepted over time into a canonical ColumnMapping:
//
//	[{"source": "Qty", "target": "quantity"}, ...]
//	{"mappings": [{"source": ..., "target": ...}, ...]}
//	{"quantity": "Qty", "item_name": ["Desc", "Name"]}
//
// For the flat-object shape, key order in the document is preserved so the
// output column order stays stable across saves.
func ParseColumnMapping(raw json.RawMessage) (*ColumnMapping, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty mapping payload")
	}

	if trimmed[0] == '[' {
		var pairs []MappingPair
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return nil, fmt.Errorf("parsing mapping list: %w", err)
		}
		return &ColumnMapping{Entries: validPairs(pairs)}, nil
	}

	// Wrapped shape first: {"mappings": [...]}
	var wrapper struct {
		Mappings []MappingPair `json:"mappings"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && wrapper.Mappings != nil {
		return &ColumnMapping{Entries: validPairs(wrapper.Mappings)}, nil
	}

	return parseFlatMapping(trimmed)
}

// parseFlatMapping walks a JSON object token by token so that target order
// matches document order (a plain map would shuffle it).
func parseFlatMapping(raw []byte) (*ColumnMapping, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing mapping object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("mapping payload is neither a list nor an object")
	}

	var entries []MappingPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing mapping object: %w", err)
		}
		target, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("mapping object has non-string key")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("parsing mapping value for %q: %w", target, err)
		}

		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			if target != "" {
				entries = append(entries, MappingPair{Source: single, Target: target})
			}
			continue
		}

		var multi []string
		if err := json.Unmarshal(value, &multi); err != nil {
			return nil, fmt.Errorf("mapping value for %q is neither string nor list", target)
		}
		for _, src := range multi {
			if target != "" {
				entries = append(entries, MappingPair{Source: src, Target: target})
			}
		}
	}

	return &ColumnMapping{Entries: entries}, nil
}

func validPairs(pairs []MappingPair) []MappingPair {
	out := make([]MappingPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Target == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
