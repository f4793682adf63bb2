// Package arxiv implements the preprint feed against arXiv, either through the
// Atom query API or by walking the HTML category listings.
package arxiv

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"PaperDigest/internal/domain"
)

const (
	arxivBaseURL = "https://arxiv.org"
	userAgent    = "PaperDigest/1.0 (+https://arxiv.org/help/api)"
)

// DefaultCategories are the arXiv subject classes scanned when none are configured.
var DefaultCategories = []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV", "cs.NE"}

var versionSuffix = regexp.MustCompile(`v\d+$`)

// window returns the inclusive [start, end] calendar range covering the
// trailing daysBack days, in UTC.
func window(now time.Time, daysBack int) (time.Time, time.Time) {
	if daysBack < 1 {
		daysBack = 1
	}
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	start := now.AddDate(0, 0, -daysBack)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return start, end
}

// normalizeID turns "http://arxiv.org/abs/2501.00001v2" or "arXiv:2501.00001" into "2501.00001".
func normalizeID(raw string) string {
	id := strings.TrimSpace(raw)
	if i := strings.LastIndex(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	id = strings.TrimPrefix(id, "arXiv:")
	return versionSuffix.ReplaceAllString(id, "")
}

func absURL(id string) string {
	return fmt.Sprintf("%s/abs/%s", arxivBaseURL, id)
}

func pdfURL(id string) string {
	return fmt.Sprintf("%s/pdf/%s", arxivBaseURL, id)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// batch accumulates parsed records, dropping malformed ones and in-batch duplicates.
type batch struct {
	logger    *slog.Logger
	seen      map[string]struct{}
	papers    []domain.Paper
	records   int
	malformed int
}

func newBatch(logger *slog.Logger) *batch {
	return &batch{logger: logger, seen: map[string]struct{}{}, papers: []domain.Paper{}}
}

func (b *batch) add(p domain.Paper, err error) {
	b.records++
	if err == nil {
		err = validate(p)
	}
	if err != nil {
		b.malformed++
		b.logger.Warn("skipping malformed feed record",
			"kind", domain.KindFeedMalformed,
			"id", p.ID,
			"error", err)
		return
	}
	if _, dup := b.seen[p.ID]; dup {
		b.logger.Debug("dropping duplicate feed record", "id", p.ID)
		return
	}
	b.seen[p.ID] = struct{}{}
	b.papers = append(b.papers, p)
}

// result returns the usable papers, FeedEmpty when records arrived but none
// could be used, or an empty slice when the feed had nothing at all.
func (b *batch) result() ([]domain.Paper, error) {
	if b.records > 0 && len(b.papers) == 0 {
		return nil, domain.Errorf(domain.KindFeedEmpty,
			"%d record(s) returned, none usable (%d malformed)", b.records, b.malformed)
	}
	return b.papers, nil
}

func validate(p domain.Paper) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("record has no id")
	case p.Title == "":
		return fmt.Errorf("record %s has no title", p.ID)
	case p.PublishedAt.IsZero():
		return fmt.Errorf("record %s has no publication time", p.ID)
	}
	return nil
}
