package sentiment

import (
	"strings"
)

// Breakdown exposes the counts behind a sentiment score
type Breakdown struct {
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Compound int     `json:"compound"`
	Negated  int     `json:"negated"`
	Score    float64 `json:"score"`
}

// Scorer maps free text to a sentiment score in [-1, 1]
type Scorer struct {
	positive       []string
	negative       []string
	compounds      []Compound
	negations      []string
	negationWindow int
}

// NewScorer creates a scorer over the given lexicon. Keywords are
// lowercased so they match the lowercased text.
func NewScorer(lex Lexicon) *Scorer {
	compounds := make([]Compound, len(lex.Compounds))
	for i, c := range lex.Compounds {
		compounds[i] = Compound{Phrase: strings.ToLower(c.Phrase), Polarity: c.Polarity}
	}
	return &Scorer{
		positive:       lowerAll(lex.Positive),
		negative:       lowerAll(lex.Negative),
		compounds:      compounds,
		negations:      lowerAll(lex.Negations),
		negationWindow: lex.NegationWindow,
	}
}

// Score returns the sentiment of text
func (s *Scorer) Score(text string) float64 {
	return s.Analyze(text).Score
}

// Analyze scores text and reports the underlying counts
func (s *Scorer) Analyze(text string) Breakdown {
	if text == "" {
		return Breakdown{}
	}

	working := strings.ToLower(text)

	// Compounds win over the keywords they contain: each matched phrase
	// contributes its polarity once and is blanked out of the working text.
	compound := 0
	for _, c := range s.compounds {
		if c.Phrase == "" || !strings.Contains(working, c.Phrase) {
			continue
		}
		compound += c.Polarity
		working = strings.ReplaceAll(working, c.Phrase, " ")
	}

	posNormal, posNegated := s.countWithNegation(working, s.positive)
	negNormal, negNegated := s.countWithNegation(working, s.negative)

	positive := posNormal + negNegated
	negative := negNormal + posNegated
	if compound > 0 {
		positive += compound
	} else if compound < 0 {
		negative += -compound
	}

	return Breakdown{
		Positive: positive,
		Negative: negative,
		Compound: compound,
		Negated:  posNegated + negNegated,
		Score:    ratioScore(positive, negative),
	}
}

// ratioScore converts polarity counts into a bounded score
func ratioScore(positive, negative int) float64 {
	var score float64
	switch {
	case negative > positive:
		score = -minFloat(1.0, float64(negative)/float64(positive+1))
	case positive > negative:
		score = minFloat(1.0, float64(positive)/float64(negative+1))
	}

	if score == 0 {
		if negative > 0 && positive == 0 {
			score = -0.5
		} else if positive > 0 && negative == 0 {
			score = 0.5
		}
	}

	return clamp(score, -1, 1)
}

// countWithNegation counts every occurrence of every keyword, splitting
// them into plain and negated hits.
func (s *Scorer) countWithNegation(text string, keywords []string) (normal, negated int) {
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		start := 0
		for {
			idx := strings.Index(text[start:], keyword)
			if idx < 0 {
				break
			}
			pos := start + idx
			if s.isNegated(text, pos) {
				negated++
			} else {
				normal++
			}
			start = pos + len(keyword)
		}
	}
	return normal, negated
}

// isNegated checks the words immediately before pos for a negation marker
func (s *Scorer) isNegated(text string, pos int) bool {
	if s.negationWindow <= 0 {
		return false
	}
	words := strings.Fields(text[:pos])
	if len(words) > s.negationWindow {
		words = words[len(words)-s.negationWindow:]
	}
	for _, word := range words {
		for _, neg := range s.negations {
			if neg != "" && strings.Contains(word, neg) {
				return true
			}
		}
	}
	return false
}

// containsAny reports whether text contains any of the keywords
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// countPresent counts the distinct keywords present in text
func countPresent(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, strings.ToLower(w))
	}
	return out
}
