package digest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperDigest/internal/domain"
)

var generated = time.Date(2025, time.November, 8, 6, 0, 0, 0, time.UTC)

func summarized(i int, text string) domain.SummarizedPaper {
	return domain.SummarizedPaper{
		ScoredPaper: domain.ScoredPaper{
			Paper: domain.Paper{
				ID:      fmt.Sprintf("2511.%05d", i),
				Title:   fmt.Sprintf("Paper %d <fast> & cheap", i),
				Authors: []string{"Ada", "Grace", "Alan", "Edsger"},
				URL:     fmt.Sprintf("https://arxiv.org/abs/2511.%05d", i),
			},
			Score:           2,
			MatchedKeywords: []string{"llm", "transformer"},
		},
		Summary: &domain.Summary{
			Problem:    text,
			Method:     "method " + text,
			Result:     "result",
			Importance: "importance",
		},
	}
}

func failed(i int) domain.SummarizedPaper {
	p := summarized(i, "")
	p.Summary = nil
	p.Paper.Abstract = strings.Repeat("abstract ", 100)
	p.Err = &domain.SummaryError{Kind: domain.KindSummaryTransient, Message: "429", Attempts: 3}
	return p
}

func TestFormat_SingleMessageLayout(t *testing.T) {
	t.Parallel()

	f := NewFormatter("", DefaultLimits(), time.UTC)
	d := domain.Digest{
		Papers:      []domain.SummarizedPaper{summarized(1, "problem one"), failed(2)},
		GeneratedAt: generated,
		Window:      1,
		Trends: &domain.TrendReport{
			TotalPapers:   40,
			TopKeywords:   []domain.TermCount{{Term: "llm", Count: 9}},
			TopCategories: []domain.TermCount{{Term: "cs.AI", Count: 20}},
		},
	}

	msgs := f.Format(d)

	require.Len(t, msgs, 1)
	blocks := msgs[0].Blocks
	require.Len(t, blocks, 5)
	assert.Equal(t, domain.BlockHeader, blocks[0].Kind)
	assert.Contains(t, blocks[0].Text, "AI Research Digest - 2025-11-08")
	assert.Contains(t, blocks[0].Text, "2 papers selected from the last 1 day.")
	assert.Equal(t, domain.BlockTrends, blocks[1].Kind)
	assert.Contains(t, blocks[1].Text, "llm (9)")
	assert.Equal(t, domain.BlockPaper, blocks[2].Kind)
	assert.Contains(t, blocks[2].Text, "<https://arxiv.org/abs/2511.00001|Paper 1 &lt;fast&gt; &amp; cheap>")
	assert.Contains(t, blocks[2].Text, "Authors: Ada, Grace, Alan et al.")
	assert.Contains(t, blocks[2].Text, "*Problem:* problem one")
	assert.Equal(t, domain.BlockPlaceholder, blocks[3].Kind)
	assert.Contains(t, blocks[3].Text, "Summary unavailable (summary_transient)")
	assert.Contains(t, blocks[3].Text, "…")
	assert.Equal(t, domain.BlockFooter, blocks[4].Kind)
}

func TestFormat_Idempotent(t *testing.T) {
	t.Parallel()

	f := NewFormatter("", Limits{MaxMessageChars: 600, MaxBlocksPerMessage: 4, MaxBlockChars: 400}, time.UTC)
	d := domain.Digest{GeneratedAt: generated, Window: 2}
	for i := 0; i < 8; i++ {
		d.Papers = append(d.Papers, summarized(i, strings.Repeat("x", 50*i)))
	}

	first := f.Format(d)
	second := f.Format(d)

	assert.Equal(t, first, second)
}

// A digest over the messaging bound is split into ordered messages that each
// respect the bound and concatenate back to the original block order.
func TestFormat_SplitsOversizedDigest(t *testing.T) {
	t.Parallel()

	limits := Limits{MaxMessageChars: 900, MaxBlocksPerMessage: 4, MaxBlockChars: 800}
	f := NewFormatter("", limits, time.UTC)
	d := domain.Digest{GeneratedAt: generated, Window: 1}
	for i := 0; i < 10; i++ {
		d.Papers = append(d.Papers, summarized(i, strings.Repeat("word ", 30)))
	}
	d.Papers[4] = failed(4)

	msgs := f.Format(d)
	unsplit := NewFormatter("", Limits{MaxMessageChars: 1 << 20, MaxBlocksPerMessage: 1000, MaxBlockChars: 800}, time.UTC).Format(d)
	require.Len(t, unsplit, 1)

	require.Greater(t, len(msgs), 1)
	var content []domain.Block
	for i, m := range msgs {
		assert.LessOrEqual(t, m.Len(), limits.MaxMessageChars, "message %d", i)
		assert.LessOrEqual(t, len(m.Blocks), limits.MaxBlocksPerMessage, "message %d", i)
		require.Equal(t, domain.BlockPageLabel, m.Blocks[0].Kind)
		assert.Equal(t, fmt.Sprintf("_AI Research Digest (%d/%d)_", i+1, len(msgs)), m.Blocks[0].Text)
		content = append(content, m.Blocks[1:]...)
	}
	assert.Equal(t, unsplit[0].Blocks, content)
}

func TestFormat_TruncatesOversizedBlockDeterministically(t *testing.T) {
	t.Parallel()

	f := NewFormatter("", Limits{MaxMessageChars: 1000, MaxBlocksPerMessage: 10, MaxBlockChars: 300}, time.UTC)
	d := domain.Digest{
		Papers:      []domain.SummarizedPaper{summarized(1, strings.Repeat("é", 1000))},
		GeneratedAt: generated,
		Window:      1,
	}

	first := f.Format(d)
	second := f.Format(d)
	require.Equal(t, first, second)

	var paperBlock domain.Block
	for _, m := range first {
		for _, b := range m.Blocks {
			if b.Kind == domain.BlockPaper {
				paperBlock = b
			}
		}
	}
	assert.Equal(t, 300, paperBlock.Len())
	assert.True(t, strings.HasSuffix(paperBlock.Text, TruncationMarker))
}

func TestClamp_DoesNotSplitMarkup(t *testing.T) {
	t.Parallel()

	f := NewFormatter("", Limits{MaxMessageChars: 1000, MaxBlocksPerMessage: 10, MaxBlockChars: 40}, time.UTC)

	cases := map[string]struct {
		text string
		want string
	}{
		"open link": {
			text: strings.Repeat("x", 20) + "<https://arxiv.org/abs/1|Title>",
			want: strings.Repeat("x", 20) + TruncationMarker,
		},
		"open entity": {
			text: strings.Repeat("y", 25) + "&amp; more text here",
			want: strings.Repeat("y", 25) + TruncationMarker,
		},
		"closed link": {
			text: "<u|t>" + strings.Repeat("z", 40),
			want: "<u|t>" + strings.Repeat("z", 22) + TruncationMarker,
		},
	}
	for name, tc := range cases {
		got := f.clamp(domain.Block{Kind: domain.BlockPaper, Text: tc.text})
		assert.Equal(t, tc.want, got.Text, name)
		assert.LessOrEqual(t, got.Len(), 40, name)
	}
}

func TestNewFormatter_ClampsBlockLimitToMessageRoom(t *testing.T) {
	t.Parallel()

	f := NewFormatter("", Limits{MaxMessageChars: 500, MaxBlocksPerMessage: 1, MaxBlockChars: 5000}, time.UTC)
	limits := f.Limits()

	assert.Equal(t, 50, limits.MaxBlocksPerMessage)
	assert.Less(t, limits.MaxBlockChars, 500)
}

func TestFormatNotice(t *testing.T) {
	t.Parallel()

	f := NewFormatter("Daily Papers", DefaultLimits(), time.UTC)

	msgs := f.FormatNotice(domain.KindNoPapersFound, generated, 1)
	require.Len(t, msgs, 1)
	assert.Equal(t, "*Daily Papers - 2025-11-08*", msgs[0].Blocks[0].Text)
	assert.Equal(t, "No new papers were published in the last 1 day.", msgs[0].Blocks[1].Text)

	msgs = f.FormatNotice(domain.KindEmptyDigest, generated, 3)
	assert.Contains(t, msgs[0].Blocks[1].Text, "last 3 days")
}

func TestSelfTestMessage(t *testing.T) {
	t.Parallel()

	msg := NewFormatter("", DefaultLimits(), time.UTC).SelfTestMessage(generated)
	require.Len(t, msg.Blocks, 2)
	assert.Contains(t, msg.Blocks[0].Text, "connectivity test")
}
