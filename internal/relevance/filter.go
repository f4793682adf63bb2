// Package relevance scores papers against a weighted keyword set.
//
// Matching is a case-insensitive substring search over title and abstract
// using a single Aho-Corasick pass. A paper's score is the sum of the weights
// of the distinct keywords it contains, so with unit weights the score is the
// matched-keyword count.
package relevance

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"PaperDigest/internal/domain"
)

// DefaultMinScore keeps any paper with at least one unit-weight match.
const DefaultMinScore = 1.0

// Matcher finds distinct keyword hits in text.
type Matcher struct {
	terms   []string
	weights []float64
	ac      *ahocorasick.Matcher
}

// NewMatcher normalizes keywords (lower case, trimmed, deduplicated) and builds the automaton.
// Keywords with a non-positive weight count as weight 1.
func NewMatcher(keywords []domain.Keyword) *Matcher {
	m := &Matcher{}
	index := make(map[string]int, len(keywords))

	for _, kw := range keywords {
		term := normalize(kw.Term)
		if term == "" {
			continue
		}
		weight := kw.Weight
		if weight <= 0 {
			weight = 1
		}
		if i, ok := index[term]; ok {
			if weight > m.weights[i] {
				m.weights[i] = weight
			}
			continue
		}
		index[term] = len(m.terms)
		m.terms = append(m.terms, term)
		m.weights = append(m.weights, weight)
	}

	if len(m.terms) > 0 {
		m.ac = ahocorasick.NewStringMatcher(m.terms)
	}
	return m
}

// Len is the number of distinct keywords.
func (m *Matcher) Len() int {
	return len(m.terms)
}

// Match returns the sorted distinct keywords found in text and their summed weight.
func (m *Matcher) Match(text string) ([]string, float64) {
	if m.ac == nil {
		return nil, 0
	}

	hits := m.ac.Match([]byte(strings.ToLower(text)))
	seen := make(map[int]struct{}, len(hits))
	matched := make([]string, 0, len(hits))
	score := 0.0
	for _, idx := range hits {
		if idx < 0 || idx >= len(m.terms) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		matched = append(matched, m.terms[idx])
		score += m.weights[idx]
	}
	sort.Strings(matched)
	return matched, score
}

// Filter scores papers and keeps those whose score is at least minScore.
// Input order is preserved; an empty keyword set yields an empty result.
func Filter(papers []domain.Paper, keywords []domain.Keyword, minScore float64) []domain.ScoredPaper {
	matcher := NewMatcher(keywords)
	if matcher.Len() == 0 {
		return []domain.ScoredPaper{}
	}

	out := make([]domain.ScoredPaper, 0, len(papers))
	for _, paper := range papers {
		matched, score := matcher.Match(paper.Title + " " + paper.Abstract)
		if score < minScore {
			continue
		}
		out = append(out, domain.ScoredPaper{
			Paper:           paper,
			Score:           score,
			MatchedKeywords: matched,
		})
	}
	return out
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
