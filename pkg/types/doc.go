// Package types provides shared type definitions for FileWise.
//
// It holds the pieces that cross package boundaries: the error taxonomy
// used by extractors, providers and the scheduler, the extraction status
// recorded per file, and the ephemeral search result returned to callers.
//
// # Errors
//
// Providers and extractors wrap the sentinel errors so callers can branch
// with errors.Is:
//
//	if errors.Is(err, types.ErrAuth) {
//	    // fatal, surface to the user
//	}
//	if errors.Is(err, types.ErrTransientProvider) {
//	    // retry once after backoff
//	}
//
// Encryption is not an error. A file whose text could not be recovered and
// which carries encryption markers is persisted with StatusEncrypted.
//
// # Search Results
//
//	result := &types.SearchResult{
//	    ChunkID: 12,
//	    Rank:    1,
//	    Score:   0.83,
//	    File:    &types.FileInfo{Path: "/docs/report.pdf"},
//	    Content: chunkText,
//	}
//
// Scores are cosine similarities in [-1, 1], higher is better.
package types
