package summarizer

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"PaperDigest/internal/domain"
)

const systemPrompt = "You are an AI research expert. You summarize papers clearly and explain why they matter."

var promptTemplate = template.Must(template.New("summary").Parse(`Summarize the following AI research paper in {{.Language}}.
Answer with exactly four sections. Start each section on its own line with the English label shown, followed by a colon:
Problem: what problem the research addresses (1-2 sentences)
Method: the key idea of the proposed approach (2-3 sentences)
Result: the main experimental results (1-2 sentences)
Importance: why this work matters (1-2 sentences)
Keep every section under {{.MaxChars}} characters and add nothing else.

Title: {{.Title}}
Authors: {{.Authors}}
Categories: {{.Categories}}
Link: {{.URL}}

Abstract:
{{.Abstract}}
`))

type promptData struct {
	Language   string
	MaxChars   int
	Title      string
	Authors    string
	Categories string
	URL        string
	Abstract   string
}

func buildPrompt(p domain.Paper, language string, maxChars int) (string, error) {
	var sb strings.Builder
	err := promptTemplate.Execute(&sb, promptData{
		Language:   language,
		MaxChars:   maxChars,
		Title:      p.Title,
		Authors:    AuthorLine(p.Authors, 3),
		Categories: strings.Join(p.Categories, ", "),
		URL:        p.URL,
		Abstract:   p.Abstract,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// AuthorLine joins the first n authors and marks the rest with "et al.".
func AuthorLine(authors []string, n int) string {
	if len(authors) <= n {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:n], ", ") + " et al."
}

var sectionLine = regexp.MustCompile(`(?i)^[\s>*#_\-•]*(problem|method|results?|importance)[\s*_]*[:：][\s*_]*(.*)$`)

// parseSummary extracts the four labeled sections from free-form model output.
// Missing sections stay empty; each section is cut to maxChars runes.
func parseSummary(text string, maxChars int) domain.Summary {
	sections := map[string]*strings.Builder{}
	current := ""

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := sectionLine.FindStringSubmatch(line); m != nil {
			current = canonical(m[1])
			if _, ok := sections[current]; !ok {
				sections[current] = &strings.Builder{}
			}
			appendLine(sections[current], m[2])
			continue
		}
		if current != "" {
			appendLine(sections[current], line)
		}
	}

	get := func(name string) string {
		sb, ok := sections[name]
		if !ok {
			return ""
		}
		return Truncate(strings.TrimSpace(sb.String()), maxChars)
	}

	return domain.Summary{
		Problem:    get("problem"),
		Method:     get("method"),
		Result:     get("result"),
		Importance: get("importance"),
	}
}

func canonical(label string) string {
	label = strings.ToLower(label)
	if label == "results" {
		return "result"
	}
	return label
}

func appendLine(sb *strings.Builder, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(line)
}

// Truncate cuts s to at most limit runes, ending with "…" when shortened.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:limit-1]), unicode.IsSpace) + "…"
}
