// Package indexer coordinates the end-to-end indexing pipeline for document folders.
//
// The indexer walks a folder, decides per file whether it changed, and runs
// changed files through extraction, chunking and embedding before persisting
// them in a single transaction.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, registry, chunker.New(1000),
//	    indexer.WithLogger(logger),
//	    indexer.WithRunHook(func(*indexer.Statistics) { searcher.Invalidate() }),
//	)
//
//	stats, err := idx.IndexFolder(ctx, "/home/me/Documents", &indexer.Config{
//	    PDFTaskDelay: indexer.DefaultPDFTaskDelay,
//	    Progress: func(fraction float64, status string) {
//	        fmt.Printf("%3.0f%% %s\n", fraction*100, status)
//	    },
//	})
//
// # Pools
//
// PDFs are slow and hit the OCR engine and cloud provider, so they run in a
// small pool (2 workers by default) with a pause after each task. All other
// files share a wide pool (50 workers). Both pools run at the same time and
// every outbound AI call still passes through the shared rate gate.
//
// # Per-File State Machine
//
//	NotIndexed -> Hashing -> Unchanged
//	                      -> Extracting -> Chunking -> Embedding -> Persisted
//
// Failed is reachable from every state. A forced run skips the hash
// comparison and re-enters at Extracting.
//
// # Incremental Indexing
//
// Change detection is by SHA-256 of the full file bytes only; size and
// modification time are recorded but never consulted:
//
//	digest, _, _, _ := indexer.HashFile(path)
//	if indexer.Decide(stored, digest, force) == indexer.Unchanged {
//	    // skip
//	}
//
// A changed file has its record upserted, its old chunks deleted and its new
// chunks inserted in one transaction. A cancelled run rolls back in-flight
// transactions so no file is left with a partial chunk set.
//
// # Errors
//
// Per-file failures (unreadable files, malformed documents, failed chunk
// embeddings) are logged, counted in Statistics and never stop the run. An
// embedding provider authentication failure (types.ErrAuth) cancels the run
// and is returned together with the statistics gathered so far.
//
// # Pruning
//
// After a completed run, records under the root whose files no longer exist
// are deleted; their chunks go with them.
package indexer
