package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

const (
	// DefaultChunkSize is the default chunk budget in characters
	DefaultChunkSize = 1000
)

// Chunker splits extracted text into bounded-size, order-preserving chunks
type Chunker struct {
	budget int
}

// New creates a Chunker with the given character budget.
// A budget <= 0 selects DefaultChunkSize.
func New(budget int) *Chunker {
	if budget <= 0 {
		budget = DefaultChunkSize
	}
	return &Chunker{budget: budget}
}

// Budget returns the configured character budget
func (c *Chunker) Budget() int {
	return c.budget
}

// Chunk packs whitespace-separated words greedily into chunks.
//
// A word joins the current chunk while currentLength + wordLength + 1 <= budget.
// A word longer than the budget becomes its own chunk. Words are never split.
// Empty or whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) []types.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]types.Chunk, 0, len(text)/c.budget+1)
	var current strings.Builder
	currentLength := 0

	flush := func() {
		if currentLength == 0 {
			return
		}
		chunks = append(chunks, types.Chunk{
			Index: len(chunks),
			Text:  current.String(),
		})
		current.Reset()
		currentLength = 0
	}

	for _, word := range words {
		wordLength := utf8.RuneCountInString(word)

		if currentLength > 0 && currentLength+wordLength+1 > c.budget {
			flush()
		}

		if currentLength > 0 {
			current.WriteByte(' ')
			currentLength++
		}
		current.WriteString(word)
		currentLength += wordLength
	}
	flush()

	return chunks
}

// Join rejoins chunks with single spaces
func Join(chunks []types.Chunk) string {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Text
	}
	return strings.Join(parts, " ")
}
