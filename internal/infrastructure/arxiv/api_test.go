package arxiv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2511.00002v1</id>
    <published>2025-11-07T17:00:00Z</published>
    <updated>2025-11-07T17:00:00Z</updated>
    <title>Sparse Attention
      for Long Contexts</title>
    <summary>  We make attention
      sparse.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2511.00002v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2511.00002v1" rel="related" type="application/pdf"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2511.00001v2</id>
    <published>2025-11-07T09:00:00Z</published>
    <updated>2025-11-07T09:00:00Z</updated>
    <title>Older Paper</title>
    <summary>Diffusion models.</summary>
    <author><name>Grace Hopper</name></author>
    <link href="http://arxiv.org/abs/2511.00001v2" rel="alternate" type="text/html"/>
    <category term="cs.CV" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2511.00002v2</id>
    <published>2025-11-07T08:00:00Z</published>
    <title>Duplicate Of First</title>
    <summary>dup</summary>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2511.00003v1</id>
    <published>2025-11-07T07:00:00Z</published>
    <title>   </title>
    <summary>No title at all.</summary>
  </entry>
</feed>`

const emptyAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
</feed>`

const onlyMalformedFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <entry>
    <published>2025-11-07T07:00:00Z</published>
    <title>No identifier</title>
  </entry>
</feed>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fetchRequest() ports.FetchRequest {
	return ports.FetchRequest{
		DaysBack:   1,
		MaxResults: 10,
		Now:        time.Date(2025, time.November, 8, 6, 0, 0, 0, time.UTC),
	}
}

func TestAPIClientFetch(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, []string{"cs.AI", "cs.LG"}, server.Client(), discardLogger())
	papers, err := client.Fetch(context.Background(), fetchRequest())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	wantSearch := "(cat:cs.AI OR cat:cs.LG) AND submittedDate:[202511070000 TO 202511082359]"
	if got := gotQuery.Get("search_query"); got != wantSearch {
		t.Fatalf("unexpected search_query: %s", got)
	}
	if gotQuery.Get("max_results") != "10" || gotQuery.Get("sortBy") != "submittedDate" || gotQuery.Get("sortOrder") != "descending" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}

	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}

	first := papers[0]
	if first.ID != "2511.00002" {
		t.Fatalf("unexpected id: %s", first.ID)
	}
	if first.Title != "Sparse Attention for Long Contexts" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Abstract != "We make attention sparse." {
		t.Fatalf("unexpected abstract: %q", first.Abstract)
	}
	if strings.Join(first.Authors, ";") != "Ada Lovelace;Alan Turing" {
		t.Fatalf("unexpected authors: %v", first.Authors)
	}
	if strings.Join(first.Categories, ",") != "cs.LG,cs.AI" {
		t.Fatalf("unexpected categories: %v", first.Categories)
	}
	if first.PDFURL != "https://arxiv.org/pdf/2511.00002" {
		t.Fatalf("unexpected pdf url: %s", first.PDFURL)
	}
	if !first.PublishedAt.Equal(time.Date(2025, time.November, 7, 17, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published time: %v", first.PublishedAt)
	}
	if papers[1].ID != "2511.00001" {
		t.Fatalf("feed order not preserved: %s", papers[1].ID)
	}
}

func TestAPIClientFetchCapsMaxResults(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	req := fetchRequest()
	req.MaxResults = 1
	papers, err := NewAPIClient(server.URL, nil, server.Client(), discardLogger()).Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(papers) != 1 || papers[0].ID != "2511.00002" {
		t.Fatalf("unexpected papers: %+v", papers)
	}
}

func TestAPIClientFetchEmptyFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(emptyAtomFeed))
	}))
	defer server.Close()

	papers, err := NewAPIClient(server.URL, nil, server.Client(), discardLogger()).Fetch(context.Background(), fetchRequest())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if papers == nil || len(papers) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", papers)
	}
}

func TestAPIClientFetchOnlyMalformed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(onlyMalformedFeed))
	}))
	defer server.Close()

	_, err := NewAPIClient(server.URL, nil, server.Client(), discardLogger()).Fetch(context.Background(), fetchRequest())
	if domain.KindOf(err) != domain.KindFeedEmpty {
		t.Fatalf("expected feed_empty, got %v", err)
	}
}

func TestAPIClientFetchUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewAPIClient(server.URL, nil, server.Client(), discardLogger()).Fetch(context.Background(), fetchRequest())
	if !errors.Is(err, domain.NewError(domain.KindFeedUnavailable, "", nil)) {
		t.Fatalf("expected feed_unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("status missing from error: %v", err)
	}
}

func TestAPIClientFetchTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := NewAPIClient(endpoint, nil, nil, discardLogger()).Fetch(context.Background(), fetchRequest())
	if domain.KindOf(err) != domain.KindFeedUnavailable {
		t.Fatalf("expected feed_unavailable, got %v", err)
	}
}

func TestNormalizeID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://arxiv.org/abs/2501.00001v3": "2501.00001",
		"arXiv:2501.00001":                  "2501.00001",
		"/abs/cs/0112017v1":                 "cs/0112017",
		"":                                  "",
	}
	for in, want := range cases {
		if got := normalizeID(in); got != want {
			t.Fatalf("normalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWindow(t *testing.T) {
	t.Parallel()

	start, end := window(time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC), 2)
	if start.Format(time.RFC3339) != "2025-02-27T00:00:00Z" {
		t.Fatalf("unexpected start: %v", start)
	}
	if end.Format(time.RFC3339) != "2025-03-01T23:59:59Z" {
		t.Fatalf("unexpected end: %v", end)
	}
}
