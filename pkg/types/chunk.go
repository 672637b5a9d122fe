package types

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Chunk is a bounded-size, order-preserving slice of a document's extracted text
type Chunk struct {
	Index int    // 0-based position within the document
	Text  string // Words joined by single spaces
}

// Length returns the chunk length in characters (runes)
func (c Chunk) Length() int {
	return utf8.RuneCountInString(c.Text)
}

// WordCount returns the number of whitespace-separated words in the chunk
func (c Chunk) WordCount() int {
	return len(strings.Fields(c.Text))
}

// Validate checks that the chunk is usable for embedding
func (c Chunk) Validate() error {
	if c.Index < 0 {
		return errors.New("chunk index must be >= 0")
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyContent
	}
	return nil
}
