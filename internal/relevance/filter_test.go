package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperDigest/internal/domain"
)

func kw(terms ...string) []domain.Keyword {
	out := make([]domain.Keyword, 0, len(terms))
	for _, t := range terms {
		out = append(out, domain.Keyword{Term: t, Weight: 1})
	}
	return out
}

func paper(id, title, abstract string) domain.Paper {
	return domain.Paper{
		ID:          id,
		Title:       title,
		Abstract:    abstract,
		PublishedAt: time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestFilter_ScoresDistinctCaseInsensitiveMatches(t *testing.T) {
	t.Parallel()

	papers := []domain.Paper{
		paper("a", "A Transformer for Everything", "We scale the TRANSFORMER with attention and a new benchmark."),
		paper("b", "Graph coloring", "Classic combinatorics."),
	}

	got := Filter(papers, kw("transformer", "attention", "benchmark", "diffusion"), DefaultMinScore)

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Paper.ID)
	assert.Equal(t, 3.0, got[0].Score)
	assert.Equal(t, []string{"attention", "benchmark", "transformer"}, got[0].MatchedKeywords)
}

func TestFilter_MinScoreBoundary(t *testing.T) {
	t.Parallel()

	papers := []domain.Paper{
		paper("two", "LLM attention", ""),
		paper("one", "LLM only", ""),
	}

	got := Filter(papers, kw("llm", "attention"), 2)

	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Paper.ID, "score equal to min_score is kept, below is dropped")
}

func TestFilter_EmptyKeywordsYieldsEmpty(t *testing.T) {
	t.Parallel()

	got := Filter([]domain.Paper{paper("a", "llm", "")}, nil, DefaultMinScore)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Filter([]domain.Paper{paper("a", "llm", "")}, kw("  ", ""), DefaultMinScore)
	assert.Empty(t, got)
}

func TestFilter_ZeroMinScoreKeepsUnmatched(t *testing.T) {
	t.Parallel()

	papers := []domain.Paper{
		paper("a", "nothing relevant", ""),
		paper("b", "An llm study", ""),
	}
	got := Filter(papers, kw("llm"), 0)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Paper.ID)
	assert.Zero(t, got[0].Score)
	assert.Empty(t, got[0].MatchedKeywords)
	assert.Equal(t, "b", got[1].Paper.ID)
	assert.Equal(t, []string{"llm"}, got[1].MatchedKeywords)
}

func TestFilter_WeightedKeywords(t *testing.T) {
	t.Parallel()

	keywords := []domain.Keyword{
		{Term: "LLM", Weight: 2.5},
		{Term: "llm", Weight: 1},
		{Term: "benchmark"},
	}

	got := Filter([]domain.Paper{paper("a", "An LLM benchmark", "llm llm llm")}, keywords, DefaultMinScore)

	require.Len(t, got, 1)
	assert.Equal(t, 3.5, got[0].Score, "duplicate terms keep the highest weight and count once")
}

func TestFilter_MatchesAcrossTitleAndAbstract(t *testing.T) {
	t.Parallel()

	got := Filter([]domain.Paper{paper("a", "Large language", "model merging")}, kw("large language model"), DefaultMinScore)
	require.Len(t, got, 1)
}

func TestFilter_Deterministic(t *testing.T) {
	t.Parallel()

	papers := []domain.Paper{
		paper("a", "diffusion transformer", "zero-shot"),
		paper("b", "few-shot llm", "fine-tuning"),
		paper("c", "nothing", "here"),
	}
	keywords := kw("diffusion", "transformer", "zero-shot", "few-shot", "llm", "fine-tuning")

	first := Filter(papers, keywords, DefaultMinScore)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Filter(papers, keywords, DefaultMinScore))
	}
}
