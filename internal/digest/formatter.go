// Package digest renders a summarized digest into size-bounded messages.
//
// Rendering is pure: the same Digest always produces the same messages.
// Blocks are packed into messages in order. When more than one message is
// needed every message starts with a page label such as
// "AI Research Digest (2/3)". A block longer than MaxBlockChars is cut and
// ends with TruncationMarker; nothing else is ever dropped.
package digest

import (
	"fmt"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/summarizer"
)

// TruncationMarker ends any block that had to be cut.
const TruncationMarker = "… [truncated]"

const (
	defaultTitle       = "AI Research Digest"
	abstractExcerptLen = 500
	labelFormat        = "_%s (%d/%d)_"
)

// Limits bound the size of each delivered message. Defaults follow Slack:
// 50 blocks per message, 3000 characters per section block, and a 3500
// character budget per message to stay under the 4000 character text cap.
type Limits struct {
	MaxMessageChars     int
	MaxBlocksPerMessage int
	MaxBlockChars       int
}

// DefaultLimits returns the Slack-oriented limits.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageChars:     3500,
		MaxBlocksPerMessage: 50,
		MaxBlockChars:       3000,
	}
}

// Formatter renders digests, notices and the self-test message.
type Formatter struct {
	title    string
	limits   Limits
	location *time.Location
}

// NewFormatter normalizes limits so any single block fits in one labeled message.
func NewFormatter(title string, limits Limits, loc *time.Location) *Formatter {
	if title == "" {
		title = defaultTitle
	}
	if loc == nil {
		loc = time.UTC
	}
	def := DefaultLimits()
	if limits.MaxMessageChars <= 0 {
		limits.MaxMessageChars = def.MaxMessageChars
	}
	if limits.MaxBlocksPerMessage < 2 {
		limits.MaxBlocksPerMessage = def.MaxBlocksPerMessage
	}
	if limits.MaxBlockChars <= 0 {
		limits.MaxBlockChars = def.MaxBlockChars
	}

	f := &Formatter{title: title, limits: limits, location: loc}
	if room := limits.MaxMessageChars - f.labelReserve(); f.limits.MaxBlockChars > room {
		f.limits.MaxBlockChars = room
	}
	return f
}

// Limits returns the effective limits after normalization.
func (f *Formatter) Limits() Limits {
	return f.limits
}

// Format renders the digest: header, optional trends, one block per paper, footer.
func (f *Formatter) Format(d domain.Digest) []domain.Message {
	blocks := make([]domain.Block, 0, len(d.Papers)+3)
	blocks = append(blocks, f.header(d))
	if d.Trends != nil && (len(d.Trends.TopKeywords) > 0 || len(d.Trends.TopCategories) > 0) {
		blocks = append(blocks, trendsBlock(*d.Trends))
	}
	for i, p := range d.Papers {
		blocks = append(blocks, paperBlock(i+1, p))
	}
	blocks = append(blocks, footer())

	for i := range blocks {
		blocks[i] = f.clamp(blocks[i])
	}
	return f.paginate(blocks)
}

// FormatNotice renders the single message sent when a policy replaces the digest.
func (f *Formatter) FormatNotice(kind domain.ErrorKind, generatedAt time.Time, window int) []domain.Message {
	var text string
	switch kind {
	case domain.KindNoPapersFound:
		text = fmt.Sprintf("No new papers were published in the last %s.", days(window))
	default:
		text = fmt.Sprintf("No papers matched the relevance keywords in the last %s.", days(window))
	}

	header := fmt.Sprintf("*%s - %s*", f.title, generatedAt.In(f.location).Format("2006-01-02"))
	return []domain.Message{{Blocks: []domain.Block{
		{Kind: domain.BlockHeader, Text: header},
		{Kind: domain.BlockNotice, Text: text},
	}}}
}

// SelfTestMessage is the minimal connectivity check payload.
func (f *Formatter) SelfTestMessage(now time.Time) domain.Message {
	return domain.Message{Blocks: []domain.Block{
		{Kind: domain.BlockHeader, Text: fmt.Sprintf("*%s - connectivity test*", f.title)},
		{Kind: domain.BlockNotice, Text: fmt.Sprintf("The digest pipeline can reach this channel (%s).", now.In(f.location).Format(time.RFC3339))},
	}}
}

func (f *Formatter) header(d domain.Digest) domain.Block {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s - %s*\n", f.title, d.GeneratedAt.In(f.location).Format("2006-01-02"))
	fmt.Fprintf(&sb, "%d %s selected from the last %s.", len(d.Papers), plural(len(d.Papers), "paper"), days(d.Window))
	return domain.Block{Kind: domain.BlockHeader, Text: sb.String()}
}

func trendsBlock(r domain.TrendReport) domain.Block {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Research trends* (%d %s scanned)", r.TotalPapers, plural(r.TotalPapers, "paper"))
	if len(r.TopKeywords) > 0 {
		sb.WriteString("\nKeywords: ")
		sb.WriteString(joinCounts(r.TopKeywords))
	}
	if len(r.TopCategories) > 0 {
		sb.WriteString("\nCategories: ")
		sb.WriteString(joinCounts(r.TopCategories))
	}
	return domain.Block{Kind: domain.BlockTrends, Text: sb.String()}
}

func paperBlock(rank int, p domain.SummarizedPaper) domain.Block {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%d. %s*", rank, link(p.Paper.URL, p.Paper.Title))
	if len(p.Paper.Authors) > 0 {
		fmt.Fprintf(&sb, "\nAuthors: %s", escape(summarizer.AuthorLine(p.Paper.Authors, 3)))
	}
	fmt.Fprintf(&sb, "\nScore %s", formatScore(p.Score))
	if len(p.MatchedKeywords) > 0 {
		fmt.Fprintf(&sb, " · matched: %s", escape(strings.Join(p.MatchedKeywords, ", ")))
	}

	if !p.OK() {
		kind := domain.KindSummaryFatal
		if p.Err != nil {
			kind = p.Err.Kind
		}
		fmt.Fprintf(&sb, "\n_Summary unavailable (%s)._", kind)
		if abstract := strings.TrimSpace(p.Paper.Abstract); abstract != "" {
			fmt.Fprintf(&sb, "\n> %s", escape(summarizer.Truncate(abstract, abstractExcerptLen)))
		}
		return domain.Block{Kind: domain.BlockPlaceholder, Text: sb.String()}
	}

	section := func(label, text string) {
		if text != "" {
			fmt.Fprintf(&sb, "\n*%s:* %s", label, escape(text))
		}
	}
	section("Problem", p.Summary.Problem)
	section("Method", p.Summary.Method)
	section("Result", p.Summary.Result)
	section("Importance", p.Summary.Importance)
	return domain.Block{Kind: domain.BlockPaper, Text: sb.String()}
}

func footer() domain.Block {
	return domain.Block{
		Kind: domain.BlockFooter,
		Text: "_Automated daily digest of new AI research, ranked by keyword relevance._",
	}
}

// clamp cuts an oversized block at a fixed rune offset, backed off so the cut
// never splits a <url|title> link or an &entity;.
func (f *Formatter) clamp(b domain.Block) domain.Block {
	limit := f.limits.MaxBlockChars
	if b.Len() <= limit {
		return b
	}
	runes := []rune(b.Text)
	keep := limit - len([]rune(TruncationMarker))
	if keep < 0 {
		keep = 0
	}
	b.Text = string(runes[:markupSafeCut(runes, keep)]) + TruncationMarker
	return b
}

// markupSafeCut moves cut back to the start of any link or entity left open in runes[:cut].
// Escaped text carries no bare '<', '>' or '&', so these only delimit markup.
func markupSafeCut(runes []rune, cut int) int {
	if lt := lastRune(runes[:cut], '<'); lt > lastRune(runes[:cut], '>') {
		cut = lt
	}
	if amp := lastRune(runes[:cut], '&'); amp > lastRune(runes[:cut], ';') {
		cut = amp
	}
	return cut
}

func lastRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func (f *Formatter) paginate(blocks []domain.Block) []domain.Message {
	single := domain.Message{Blocks: blocks}
	if len(blocks) <= f.limits.MaxBlocksPerMessage && single.Len() <= f.limits.MaxMessageChars {
		return []domain.Message{single}
	}

	maxChars := f.limits.MaxMessageChars - f.labelReserve()
	maxBlocks := f.limits.MaxBlocksPerMessage - 1

	var (
		pages   [][]domain.Block
		current []domain.Block
		size    int
	)
	for _, b := range blocks {
		added := b.Len()
		if len(current) > 0 {
			added++
		}
		if len(current) > 0 && (len(current)+1 > maxBlocks || size+added > maxChars) {
			pages = append(pages, current)
			current, size, added = nil, 0, b.Len()
		}
		current = append(current, b)
		size += added
	}
	if len(current) > 0 {
		pages = append(pages, current)
	}

	messages := make([]domain.Message, len(pages))
	for i, page := range pages {
		label := domain.Block{Kind: domain.BlockPageLabel, Text: fmt.Sprintf(labelFormat, f.title, i+1, len(pages))}
		messages[i] = domain.Message{Blocks: append([]domain.Block{label}, page...)}
	}
	return messages
}

// labelReserve is the budget for a page label plus its separator.
func (f *Formatter) labelReserve() int {
	return len([]rune(fmt.Sprintf(labelFormat, f.title, 999, 999))) + 1
}

func link(url, title string) string {
	title = escape(strings.ReplaceAll(title, "|", "/"))
	if url == "" {
		return title
	}
	return fmt.Sprintf("<%s|%s>", url, title)
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

func joinCounts(counts []domain.TermCount) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s (%d)", escape(c.Term), c.Count)
	}
	return strings.Join(parts, ", ")
}

func formatScore(score float64) string {
	if score == float64(int64(score)) {
		return fmt.Sprintf("%d", int64(score))
	}
	return fmt.Sprintf("%.2f", score)
}

func days(window int) string {
	return fmt.Sprintf("%d %s", window, plural(window, "day"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
