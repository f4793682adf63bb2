package arxiv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// DefaultAPIURL is the arXiv Atom query endpoint.
const DefaultAPIURL = "https://export.arxiv.org/api/query"

// APIClient queries the arXiv Atom API for recent submissions.
type APIClient struct {
	endpoint   string
	categories []string
	client     *http.Client
	logger     *slog.Logger
}

var _ ports.FeedClient = (*APIClient)(nil)

// NewAPIClient builds a client; empty endpoint or categories fall back to defaults.
func NewAPIClient(endpoint string, categories []string, client *http.Client, logger *slog.Logger) *APIClient {
	if endpoint == "" {
		endpoint = DefaultAPIURL
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &APIClient{endpoint: endpoint, categories: categories, client: client, logger: logger}
}

// Name identifies the strategy inside the source registry.
func (c *APIClient) Name() string {
	return "api"
}

// Fetch returns papers submitted in the trailing window, newest first, as the feed orders them.
func (c *APIClient) Fetch(ctx context.Context, req ports.FetchRequest) ([]domain.Paper, error) {
	queryURL, err := c.buildQueryURL(req)
	if err != nil {
		return nil, domain.NewError(domain.KindFeedUnavailable, "", err)
	}
	c.logger.Debug("query arxiv api", "url", queryURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindFeedUnavailable, "", fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewError(domain.KindFeedUnavailable, "", fmt.Errorf("request feed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.NewError(domain.KindFeedUnavailable, "",
			fmt.Errorf("arxiv returned %s: %s", resp.Status, strings.TrimSpace(string(snippet))))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindFeedMalformed, "", fmt.Errorf("parse atom feed: %w", err))
	}

	b := newBatch(c.logger)
	for _, item := range feed.Items {
		b.add(itemToPaper(item))
	}
	papers, err := b.result()
	if err != nil {
		return nil, err
	}
	if req.MaxResults > 0 && len(papers) > req.MaxResults {
		papers = papers[:req.MaxResults]
	}

	c.logger.Info("arxiv api fetch done",
		"records", b.records,
		"papers", len(papers),
		"malformed", b.malformed)
	return papers, nil
}

func (c *APIClient) buildQueryURL(req ports.FetchRequest) (string, error) {
	parsed, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid api endpoint %s: %w", c.endpoint, err)
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	start, end := window(now, req.DaysBack)

	cats := make([]string, len(c.categories))
	for i, cat := range c.categories {
		cats[i] = "cat:" + cat
	}
	search := fmt.Sprintf("(%s) AND submittedDate:[%s0000 TO %s2359]",
		strings.Join(cats, " OR "), start.Format("20060102"), end.Format("20060102"))

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	query := parsed.Query()
	query.Set("search_query", search)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func itemToPaper(item *gofeed.Item) (domain.Paper, error) {
	if item == nil {
		return domain.Paper{}, fmt.Errorf("nil feed item")
	}

	rawID := item.GUID
	if rawID == "" {
		rawID = item.Link
	}
	id := normalizeID(rawID)

	p := domain.Paper{
		ID:         id,
		Title:      collapseSpace(item.Title),
		Abstract:   collapseSpace(item.Description),
		Categories: uniqueStrings(item.Categories),
		URL:        item.Link,
	}
	if p.Abstract == "" {
		p.Abstract = collapseSpace(item.Content)
	}
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			p.Authors = append(p.Authors, strings.TrimSpace(author.Name))
		}
	}
	if id != "" {
		if p.URL == "" {
			p.URL = absURL(id)
		}
		p.PDFURL = pdfURL(id)
	}

	switch {
	case item.PublishedParsed != nil:
		p.PublishedAt = item.PublishedParsed.UTC()
	case item.Published != "":
		return p, fmt.Errorf("record %s: unparseable publication time %q", id, item.Published)
	}
	return p, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
