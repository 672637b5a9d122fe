// Package chunker divides extracted document text into chunks for embedding.
//
// # Basic Usage
//
//	c := chunker.New(1000)
//	for _, ch := range c.Chunk(text) {
//	    fmt.Printf("chunk %d: %d chars\n", ch.Index, ch.Length())
//	}
//
// # Chunking Strategy
//
// Text is tokenized on whitespace and words are packed greedily. A word is
// appended while currentLength + wordLength + 1 stays within the budget,
// otherwise the current chunk is closed and a new one starts. Lengths are
// counted in runes.
//
//   - Words are never split. A word longer than the budget is emitted alone.
//   - Output is deterministic and keeps the word order.
//   - Empty or whitespace-only text yields zero chunks.
//
// Rejoining all chunks with single spaces reproduces the whitespace-normalized
// input:
//
//	strings.Join(strings.Fields(text), " ") == chunker.Join(chunks)
package chunker
