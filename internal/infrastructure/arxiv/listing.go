package arxiv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// DefaultListingURL is the host serving /list/<category>/pastweek pages.
const DefaultListingURL = "https://export.arxiv.org"

var (
	dateExpr     = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)
	categoryExpr = regexp.MustCompile(`\(([a-z\-]+(?:\.[A-Za-z\-]+)?)\)`)
)

// ListingClient crawls category listing pages and keeps entries inside the window.
type ListingClient struct {
	baseURL    string
	categories []string
	client     *http.Client
	pageSize   int
	logger     *slog.Logger
}

var _ ports.FeedClient = (*ListingClient)(nil)

// NewListingClient wires an HTTP client; pageSize defaults to 200.
func NewListingClient(baseURL string, categories []string, client *http.Client, logger *slog.Logger) *ListingClient {
	if baseURL == "" {
		baseURL = DefaultListingURL
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		categories: categories,
		client:     client,
		pageSize:   200,
		logger:     logger,
	}
}

// Name identifies the strategy inside the source registry.
func (l *ListingClient) Name() string {
	return "listing"
}

// Fetch walks each category listing and returns in-window papers, newest first.
func (l *ListingClient) Fetch(ctx context.Context, req ports.FetchRequest) ([]domain.Paper, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	start, end := window(now, req.DaysBack)

	b := newBatch(l.logger)
	for _, cat := range l.categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(fmt.Sprintf("%s/list/%s/pastweek", l.baseURL, cat), skip, l.pageSize)
			if err != nil {
				return nil, domain.NewError(domain.KindFeedUnavailable, "", fmt.Errorf("category %s: %w", cat, err))
			}

			doc, err := l.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, domain.NewError(domain.KindFeedUnavailable, "", fmt.Errorf("category %s: %w", cat, err))
			}

			if !l.extractPapers(doc, b, start, end) {
				break
			}
			skip += l.pageSize
		}
	}

	papers, err := b.result()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].PublishedAt.After(papers[j].PublishedAt)
	})
	if req.MaxResults > 0 && len(papers) > req.MaxResults {
		papers = papers[:req.MaxResults]
	}

	l.logger.Info("arxiv listing fetch done",
		"categories", len(l.categories),
		"records", b.records,
		"papers", len(papers),
		"malformed", b.malformed)
	return papers, nil
}

func (l *ListingClient) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// extractPapers adds in-window entries to the batch and reports whether the
// next page may still hold in-window entries.
func (l *ListingClient) extractPapers(doc *goquery.Document, b *batch, start, end time.Time) bool {
	var (
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		paper, err := parseEntry(dt, dd)
		if err != nil || paper.PublishedAt.IsZero() {
			b.add(paper, err)
			return true
		}

		if paper.PublishedAt.Before(start) {
			continueScan = false
			return false
		}
		if !paper.PublishedAt.After(end) {
			b.add(paper, nil)
		}
		return true
	})

	if processed < l.pageSize {
		continueScan = false
	}
	return continueScan
}

func parseEntry(dt, dd *goquery.Selection) (domain.Paper, error) {
	link := dt.Find(`a[href*="/abs/"]`).First()
	href, _ := link.Attr("href")

	id := normalizeID(strings.TrimSpace(link.Text()))
	if id == "" {
		id = normalizeID(href)
	}
	if href != "" && !strings.HasPrefix(href, "http") {
		href = arxivBaseURL + href
	}
	if href == "" && id != "" {
		href = absURL(id)
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = collapseSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = collapseSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	var categories []string
	for _, m := range categoryExpr.FindAllStringSubmatch(dd.Find(".list-subjects").First().Text(), -1) {
		categories = append(categories, m[1])
	}

	paper := domain.Paper{
		ID:         id,
		Title:      title,
		Abstract:   abstract,
		Authors:    authors,
		Categories: uniqueStrings(categories),
		URL:        href,
	}
	if id != "" {
		paper.PDFURL = pdfURL(id)
	}

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	match := dateExpr.FindString(dateText)
	if match == "" {
		return paper, fmt.Errorf("entry %s has no date", id)
	}
	publishedAt, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return paper, fmt.Errorf("entry %s: parse date %q: %w", id, match, err)
	}
	paper.PublishedAt = publishedAt.UTC()
	return paper, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
