package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Combination weights. The reference configuration declared a fifth
// levenshtein weight of 0.10 that was never applied, leaving the applied
// weights summing to 0.90; scores are divided by that sum so the combined
// value is a true [0,1] scale.
const (
	weightSemantic  = 0.40
	weightEdit      = 0.25
	weightTokenSort = 0.15
	weightPartial   = 0.10

	weightTotal = weightSemantic + weightEdit + weightTokenSort + weightPartial
)

// Score holds the sub-scores and combined similarity for one header pair.
type Score struct {
	Semantic  float64
	Edit      float64
	TokenSort float64
	Partial   float64
	Combined  float64
}

// Confidence is the combined score as an integer percentage.
func (s Score) Confidence() int {
	return int(math.Round(s.Combined * 100))
}

// Scorer computes multi-signal similarity between two header strings.
// It is stateless and safe for concurrent use.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes all sub-scores for the pair and combines them. The fuzzy
// metrics compare case-insensitively, matching the semantic comparison.
func (sc *Scorer) Score(a, b string) Score {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))

	s := Score{
		Semantic:  sc.Semantic(a, b),
		Edit:      sc.EditRatio(la, lb),
		TokenSort: sc.TokenSortRatio(la, lb),
		Partial:   sc.PartialRatio(la, lb),
	}

	combined := (s.Semantic*weightSemantic +
		s.Edit*weightEdit +
		s.TokenSort*weightTokenSort +
		s.Partial*weightPartial) / weightTotal
	s.Combined = math.Min(1, math.Max(0, combined))
	return s
}

// Semantic scores the pair against the synonym and abbreviation tables:
// 1.0 exact (case-insensitive), 0.95 both synonyms of the same canonical
// term, 0.90 canonical term paired with one of its synonyms, 0.85 when
// the abbreviation expansions coincide or land in the same synonym group,
// else 0.
func (sc *Scorer) Semantic(a, b string) float64 {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return 0
	}
	if la == lb {
		return 1.0
	}

	for _, set := range synonymSets {
		if set[la] && set[lb] {
			return 0.95
		}
	}
	if set, ok := synonymSets[la]; ok && set[lb] {
		return 0.90
	}
	if set, ok := synonymSets[lb]; ok && set[la] {
		return 0.90
	}

	ea, eb := expand(la), expand(lb)
	if ea == eb {
		return 0.85
	}
	// An expansion may land inside a synonym group even when the raw
	// terms do not ("desc" -> "description" -> item_name group).
	if ea != la || eb != lb {
		for canonical, set := range synonymSets {
			if set[ea] && set[eb] {
				return 0.85
			}
			if (canonical == ea && set[eb]) || (canonical == eb && set[ea]) {
				return 0.85
			}
		}
	}

	return 0
}

// EditRatio is the normalized edit-distance similarity in [0,1].
func (sc *Scorer) EditRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

// TokenSortRatio tokenizes both strings on whitespace, sorts the tokens,
// and compares the rejoined forms. Word order therefore does not matter.
func (sc *Scorer) TokenSortRatio(a, b string) float64 {
	return sc.EditRatio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// PartialRatio slides the shorter string across the longer one and
// returns the best window ratio, so a header embedded inside a longer one
// still scores high.
func (sc *Scorer) PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	short, long := ra, rb
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 1.0
		}
		return 0
	}
	if len(short) == len(long) {
		return sc.EditRatio(string(short), string(long))
	}

	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := sc.EditRatio(string(short), string(long[i:i+len(short)]))
		if r > best {
			best = r
		}
	}
	return best
}
