package trends

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"PaperDigest/internal/domain"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	papers := []domain.Paper{
		{ID: "1", Title: "LLM agents", Abstract: "an llm benchmark", Categories: []string{"cs.AI", "cs.CL", "cs.AI"}},
		{ID: "2", Title: "Diffusion", Abstract: "a benchmark", Categories: []string{"cs.CV"}},
		{ID: "3", Title: "LLM reasoning", Abstract: "", Categories: []string{"cs.CL"}},
	}
	keywords := []domain.Keyword{{Term: "llm"}, {Term: "benchmark"}, {Term: "diffusion"}, {Term: "gpt"}}

	report := Analyze(papers, keywords, 2)

	assert.Equal(t, 3, report.TotalPapers)
	assert.Equal(t, []domain.TermCount{{Term: "benchmark", Count: 2}, {Term: "llm", Count: 2}}, report.TopKeywords)
	assert.Equal(t, []domain.TermCount{{Term: "cs.CL", Count: 2}, {Term: "cs.AI", Count: 1}}, report.TopCategories)
}

func TestAnalyze_Empty(t *testing.T) {
	t.Parallel()

	report := Analyze(nil, nil, 5)
	assert.Zero(t, report.TotalPapers)
	assert.Empty(t, report.TopKeywords)
	assert.Empty(t, report.TopCategories)
}
