// Package storage provides SQLite-based persistence for file records and
// chunk embeddings.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semver)
//   - file_metadata: one row per file, unique file_path, SHA-256 hash,
//     extracted text (possibly empty), extraction status and diagnostic
//   - chunk_embeddings: chunk text, 0-based chunk_index and the embedding as
//     a JSON array, owned by a file row (ON DELETE CASCADE)
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("/home/me/.filewise/filewise.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
// # Transactions
//
// Replacing a file's chunks is one transaction so readers never see a half
// updated file:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.UpsertFile(ctx, record); err != nil {
//	    return err
//	}
//	if _, err := tx.DeleteChunksByFile(ctx, record.ID); err != nil {
//	    return err
//	}
//	for _, ch := range chunks {
//	    ch.FileMetadataID = record.ID
//	    if err := tx.InsertChunk(ctx, ch); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// Writes share a single connection. Inside a transaction use only the Tx
// methods; a write through the parent store would wait on the connection the
// transaction holds. File-backed databases read through a separate pool and
// see the last committed state, so reads never wait on the writer. In-memory
// databases use one connection for both.
//
// # Vector Search
//
// SearchVector is an exact brute-force scan: every stored vector is compared
// to the query with cosine similarity, results are sorted descending with
// ties kept in insertion order, and the top K are returned.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
package storage
