package ranking

import (
	"sort"

	"PaperDigest/internal/domain"
)

// Rank orders papers by score desc, then publication time desc, then id asc,
// and keeps the first topN. The input slice is not modified.
func Rank(papers []domain.ScoredPaper, topN int) []domain.ScoredPaper {
	if len(papers) == 0 || topN <= 0 {
		return []domain.ScoredPaper{}
	}

	ranked := make([]domain.ScoredPaper, len(papers))
	copy(ranked, papers)

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func less(a, b domain.ScoredPaper) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Paper.PublishedAt.Equal(b.Paper.PublishedAt) {
		return a.Paper.PublishedAt.After(b.Paper.PublishedAt)
	}
	return a.Paper.ID < b.Paper.ID
}
