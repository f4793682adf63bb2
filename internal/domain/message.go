package domain

import "unicode/utf8"

// BlockKind tags the role of a rendered block.
type BlockKind string

const (
	BlockHeader      BlockKind = "header"
	BlockPageLabel   BlockKind = "page_label"
	BlockTrends      BlockKind = "trends"
	BlockPaper       BlockKind = "paper"
	BlockPlaceholder BlockKind = "placeholder"
	BlockNotice      BlockKind = "notice"
	BlockFooter      BlockKind = "footer"
)

// Block is one rendered unit of a message, in mrkdwn.
type Block struct {
	Kind BlockKind
	Text string
}

// Len is the block size in characters.
func (b Block) Len() int {
	return utf8.RuneCountInString(b.Text)
}

// Message is an ordered group of blocks delivered as one payload.
type Message struct {
	Blocks []Block
}

// Len is the message size in characters, counting one separator between blocks.
func (m Message) Len() int {
	total := 0
	for i, b := range m.Blocks {
		if i > 0 {
			total++
		}
		total += b.Len()
	}
	return total
}
