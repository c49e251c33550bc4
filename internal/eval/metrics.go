package eval

import (
	"regexp"
	"strings"

	"github.com/ufro-labs/norma-qa/internal/services"
)

// abstentionMarker identifies abstention answers by their fixed opening.
const abstentionMarker = "No encontré información"

// citationPattern matches inline citations like
// [Reglamento de Matrícula, página 12] or [Reglamento, p. 3].
var citationPattern = regexp.MustCompile(`(?i)\[([^,]+),\s*(página|p\.)\s*\d+\]`)

// SimilarityScorer scores how close an answer is to an expected answer,
// in [0, 1]. The default implementation is a crude length heuristic; swap in
// an embedding-based comparator once reference answers exist.
type SimilarityScorer interface {
	Score(answer, expected string) float64
}

// LengthHeuristicScorer is the placeholder scorer: any substantive answer
// scores 0.8, anything shorter 0.2.
type LengthHeuristicScorer struct{}

func (LengthHeuristicScorer) Score(answer, expected string) float64 {
	if len(answer) > 50 {
		return 0.8
	}
	return 0.2
}

// CitationCoverage returns the fraction of expected doc IDs that appear among
// the cited sources. With nothing expected the coverage is 1.0.
func CitationCoverage(sources []services.Source, expected []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}

	cited := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		cited[s.DocID] = struct{}{}
	}

	covered := 0
	for _, docID := range expected {
		if _, ok := cited[docID]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(expected))
}

// PrecisionAtK returns the fraction of the top-k retrieved sources whose doc
// ID is expected. k is capped at the retrieved count; with nothing expected or
// nothing retrieved the precision is 0.
func PrecisionAtK(sources []services.Source, expected []string, k int) float64 {
	if len(expected) == 0 || len(sources) == 0 || k <= 0 {
		return 0.0
	}

	if k > len(sources) {
		k = len(sources)
	}

	relevant := 0
	for _, s := range sources[:k] {
		for _, docID := range expected {
			if s.DocID == docID {
				relevant++
				break
			}
		}
	}
	return float64(relevant) / float64(k)
}

// HasProperCitations reports whether the answer contains at least one inline
// citation in the required format.
func HasProperCitations(answer string) bool {
	return citationPattern.MatchString(answer)
}

// Abstained reports whether the answer is the fixed abstention message.
func Abstained(answer string) bool {
	return strings.Contains(answer, abstentionMarker)
}
