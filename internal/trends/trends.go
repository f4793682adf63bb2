// Package trends counts keyword and category frequencies across a fetch batch.
package trends

import (
	"sort"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/relevance"
)

// Analyze counts, per keyword, how many papers mention it and, per category,
// how many papers carry it. Each list is sorted by count desc then name asc
// and cut to limit entries (limit <= 0 keeps everything).
func Analyze(papers []domain.Paper, keywords []domain.Keyword, limit int) domain.TrendReport {
	matcher := relevance.NewMatcher(keywords)
	keywordCounts := map[string]int{}
	categoryCounts := map[string]int{}

	for _, p := range papers {
		matched, _ := matcher.Match(p.Title + " " + p.Abstract)
		for _, term := range matched {
			keywordCounts[term]++
		}
		seen := map[string]struct{}{}
		for _, cat := range p.Categories {
			if _, dup := seen[cat]; dup || cat == "" {
				continue
			}
			seen[cat] = struct{}{}
			categoryCounts[cat]++
		}
	}

	return domain.TrendReport{
		TotalPapers:   len(papers),
		TopKeywords:   top(keywordCounts, limit),
		TopCategories: top(categoryCounts, limit),
	}
}

func top(counts map[string]int, limit int) []domain.TermCount {
	out := make([]domain.TermCount, 0, len(counts))
	for term, n := range counts {
		out = append(out, domain.TermCount{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
