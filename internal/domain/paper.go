package domain

import "time"

// Paper is a core entity describing metadata fetched from the preprint feed.
type Paper struct {
	ID          string
	Title       string
	Abstract    string
	Authors     []string
	PublishedAt time.Time
	Categories  []string
	URL         string
	PDFURL      string
}

// Keyword is a relevance term with its scoring weight.
type Keyword struct {
	Term   string  `yaml:"term"`
	Weight float64 `yaml:"weight"`
}

// ScoredPaper captures keyword relevance for prioritization.
type ScoredPaper struct {
	Paper           Paper
	Score           float64
	MatchedKeywords []string
}

// Summary is the structured language-model summary of one paper.
type Summary struct {
	Problem    string
	Method     string
	Result     string
	Importance string
}

// Empty reports whether every section is blank.
func (s Summary) Empty() bool {
	return s.Problem == "" && s.Method == "" && s.Result == "" && s.Importance == ""
}

// SummaryError records why a paper could not be summarized.
type SummaryError struct {
	Kind     ErrorKind
	Message  string
	Attempts int
}

// SummarizedPaper carries either a summary or the error that prevented one.
type SummarizedPaper struct {
	ScoredPaper
	Summary *Summary
	Err     *SummaryError
}

// OK reports whether the paper carries a summary.
func (p SummarizedPaper) OK() bool {
	return p.Summary != nil && p.Err == nil
}

// TermCount is a label with its frequency.
type TermCount struct {
	Term  string
	Count int
}

// TrendReport aggregates keyword and category frequencies over a fetch batch.
type TrendReport struct {
	TotalPapers   int
	TopKeywords   []TermCount
	TopCategories []TermCount
}

// Digest is the ranked, summarized result of one run.
type Digest struct {
	Papers      []SummarizedPaper
	GeneratedAt time.Time
	Window      int
	Trends      *TrendReport
}
