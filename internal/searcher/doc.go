// Package searcher implements semantic search over indexed document chunks.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb, searcher.WithCache(1000, time.Hour))
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "quarterly revenue forecast",
//	    Limit: 10,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.2f)\n", r.Rank, r.File.Path, r.Score)
//	}
//
// # Ranking
//
// The query is embedded with the same provider used at index time. Every
// stored chunk is then scored by cosine similarity, dot(a, b) / (|a| |b|),
// clamped to [-1, 1]. A zero-magnitude vector scores 0 and chunks embedded
// with a different dimension are skipped. Results are stably sorted by
// score, so equal scores keep the order in which chunks were inserted, and
// the top K are joined with their file records.
//
// The scan is exact and brute force: O(N) in the number of stored chunks.
//
// # Caching
//
// Responses are cached per normalized query and limit in an expiring LRU.
// Call Invalidate after any index run; the indexer's run hook does this in
// the application wiring. Cached responses are deep copies, so callers may
// modify what they receive.
//
// # Question Answering
//
// An Answerer retrieves the top chunks for a question and sends them as
// numbered context to an llm.Generator:
//
//	a := searcher.NewAnswerer(s, generator, 5, logger)
//	ans, err := a.Ask(ctx, "When does the lease expire?")
//	fmt.Println(ans.Text)
//	for _, src := range ans.Sources {
//	    fmt.Println("  ", src.File.Path)
//	}
//
// When no chunk matches, Ask returns NoContextAnswer without calling the model.
package searcher
