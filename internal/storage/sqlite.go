package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// DefaultReadConns is the size of the read pool for file-backed databases
const DefaultReadConns = 4

// SQLiteStorage implements the Storage interface using SQLite. Writes go
// through a single connection; reads use a separate pool so searches do not
// wait behind per-file write transactions. In-memory databases share one
// connection for both.
type SQLiteStorage struct {
	db     *sql.DB
	reader *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single connection: writes are serialized and :memory: databases stay alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Required for ON DELETE CASCADE
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// openReadPool opens the read-side pool. WAL readers see the last committed
// state while the writer holds its transaction.
func openReadPool(dbPath string, conns int) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open(DriverName, dbPath+sep+busyTimeoutParam)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// isMemoryPath reports whether every connection would get its own database
func isMemoryPath(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	store := &SQLiteStorage{db: db, reader: db}
	if !isMemoryPath(dbPath) {
		reader, err := openReadPool(dbPath, DefaultReadConns)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open read pool: %w", err)
		}
		store.reader = reader
	}
	return store, nil
}

// Close closes the database connections
func (s *SQLiteStorage) Close() error {
	var readErr error
	if s.reader != s.db {
		readErr = s.reader.Close()
	}
	return errors.Join(s.db.Close(), readErr)
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// readQuerier returns the read pool querier
func (s *SQLiteStorage) readQuerier() querier {
	return s.reader
}

// File operations

const fileColumns = `id, file_name, file_path, file_type, file_size, modified_date,
		       extracted_text, indexed_date, hash, extraction_status, diagnostic`

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row scanner) (*FileRecord, error) {
	var file FileRecord
	var status string
	err := row.Scan(
		&file.ID, &file.FileName, &file.FilePath, &file.FileType, &file.FileSize,
		&file.ModifiedDate, &file.ExtractedText, &file.IndexedDate, &file.Hash,
		&status, &file.Diagnostic,
	)
	if err != nil {
		return nil, err
	}
	file.ExtractionStatus = types.ExtractionStatus(status)
	return &file, nil
}

// upsertFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *FileRecord) error {
	query := `
		INSERT INTO file_metadata (file_name, file_path, file_type, file_size, modified_date,
		                           extracted_text, indexed_date, hash, extraction_status, diagnostic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_name = excluded.file_name,
			file_type = excluded.file_type,
			file_size = excluded.file_size,
			modified_date = excluded.modified_date,
			extracted_text = excluded.extracted_text,
			indexed_date = excluded.indexed_date,
			hash = excluded.hash,
			extraction_status = excluded.extraction_status,
			diagnostic = excluded.diagnostic
		RETURNING id
	`
	if file.FilePath == "" {
		return fmt.Errorf("failed to upsert file: empty path")
	}
	if file.ExtractionStatus == "" {
		file.ExtractionStatus = types.StatusOK
	}
	now := time.Now().UTC()
	err := q.QueryRowContext(ctx, query,
		file.FileName, file.FilePath, file.FileType, file.FileSize, file.ModifiedDate.UTC(),
		file.ExtractedText, now, file.Hash, string(file.ExtractionStatus), file.Diagnostic,
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.IndexedDate = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *FileRecord) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

// getFileByPathWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getFileByPathWithQuerier(ctx context.Context, q querier, filePath string) (*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM file_metadata WHERE file_path = ?`
	file, err := scanFile(q.QueryRowContext(ctx, query, filepath.Clean(filePath)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *SQLiteStorage) GetFileByPath(ctx context.Context, filePath string) (*FileRecord, error) {
	return s.getFileByPathWithQuerier(ctx, s.readQuerier(), filePath)
}

// getFileByIDWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getFileByIDWithQuerier(ctx context.Context, q querier, fileID int64) (*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM file_metadata WHERE id = ?`
	file, err := scanFile(q.QueryRowContext(ctx, query, fileID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *SQLiteStorage) GetFileByID(ctx context.Context, fileID int64) (*FileRecord, error) {
	return s.getFileByIDWithQuerier(ctx, s.readQuerier(), fileID)
}

// deleteFileWithQuerier removes a file record; its chunks go with it via ON DELETE CASCADE
func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM file_metadata WHERE id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

// listFilesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, where string, args ...interface{}) ([]*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM file_metadata ` + where + ` ORDER BY file_path`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*FileRecord, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context) ([]*FileRecord, error) {
	return s.listFilesWithQuerier(ctx, s.readQuerier(), "")
}

func (s *SQLiteStorage) ListFilesUnder(ctx context.Context, root string) ([]*FileRecord, error) {
	return s.listFilesWithQuerier(ctx, s.readQuerier(), "WHERE file_path = ? OR substr(file_path, 1, ?) = ?", underArgs(root)...)
}

// underArgs builds the arguments matching root itself or anything below it.
// A prefix comparison is used instead of LIKE so '%' and '_' in paths stay
// literal. substr counts characters, not bytes.
func underArgs(root string) []interface{} {
	root = filepath.Clean(root)
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return []interface{}{root, utf8.RuneCountInString(prefix), prefix}
}

// Chunk embedding operations

// insertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, chunk *ChunkEmbedding) error {
	payload, err := encodeEmbedding(chunk.Embedding)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = q.QueryRowContext(ctx, `
		INSERT INTO chunk_embeddings (file_metadata_id, chunk_text, chunk_index, embedding_json, created_date)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, chunk.FileMetadataID, chunk.ChunkText, chunk.ChunkIndex, payload, now).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	chunk.CreatedDate = now
	return nil
}

func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *ChunkEmbedding) error {
	return s.insertChunkWithQuerier(ctx, s.querier(), chunk)
}

// listChunksByFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*ChunkEmbedding, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, file_metadata_id, chunk_index, chunk_text, embedding_json, created_date
		FROM chunk_embeddings
		WHERE file_metadata_id = ?
		ORDER BY chunk_index
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*ChunkEmbedding, 0)
	for rows.Next() {
		var chunk ChunkEmbedding
		var payload string
		if err := rows.Scan(&chunk.ID, &chunk.FileMetadataID, &chunk.ChunkIndex,
			&chunk.ChunkText, &payload, &chunk.CreatedDate); err != nil {
			return nil, err
		}
		if chunk.Embedding, err = decodeEmbedding(payload); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.ID, err)
		}
		chunks = append(chunks, &chunk)
	}

	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, fileID int64) ([]*ChunkEmbedding, error) {
	return s.listChunksByFileWithQuerier(ctx, s.readQuerier(), fileID)
}

// deleteChunksByFileWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE file_metadata_id = ?`, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SQLiteStorage) DeleteChunksByFile(ctx context.Context, fileID int64) (int, error) {
	return s.deleteChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) countChunksWithQuerier(ctx context.Context, q querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_embeddings`).Scan(&n)
	return n, err
}

func (s *SQLiteStorage) CountChunks(ctx context.Context) (int, error) {
	return s.countChunksWithQuerier(ctx, s.readQuerier())
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int) ([]VectorResult, error) {
	return searchVector(ctx, s.readQuerier(), queryVector, limit)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		FilesByStatus: make(map[types.ExtractionStatus]int),
		DriverName:    DriverName,
	}

	rows, err := q.QueryContext(ctx, `SELECT extraction_status, COUNT(*) FROM file_metadata GROUP BY extraction_status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.FilesByStatus[types.ExtractionStatus(st)] = n
		status.FilesCount += n
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if status.ChunksCount, err = s.countChunksWithQuerier(ctx, q); err != nil {
		return nil, err
	}

	var last sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT MAX(indexed_date) FROM file_metadata`).Scan(&last); err != nil {
		return nil, err
	}
	if last.Valid {
		status.LastIndexedAt = parseSQLiteTime(last.String)
	}

	dims, err := q.QueryContext(ctx, `SELECT DISTINCT json_array_length(embedding_json) FROM chunk_embeddings ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	for dims.Next() {
		var d int
		if err := dims.Scan(&d); err != nil {
			_ = dims.Close()
			return nil, err
		}
		status.EmbeddingsDims = append(status.EmbeddingsDims, d)
	}
	if err := dims.Close(); err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var version sql.NullString
	_ = q.QueryRowContext(ctx, `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)
	status.SchemaVersion = version.String

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.readQuerier())
}

// parseSQLiteTime parses the textual forms drivers use for stored time values
func parseSQLiteTime(v string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Transaction implementations. Every method goes through the transaction so a
// single-connection pool never waits on itself.

func (t *sqliteTx) UpsertFile(ctx context.Context, file *FileRecord) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFileByPath(ctx context.Context, filePath string) (*FileRecord, error) {
	return t.storage.getFileByPathWithQuerier(ctx, t.querier(), filePath)
}

func (t *sqliteTx) GetFileByID(ctx context.Context, fileID int64) (*FileRecord, error) {
	return t.storage.getFileByIDWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListFiles(ctx context.Context) ([]*FileRecord, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), "")
}

func (t *sqliteTx) ListFilesUnder(ctx context.Context, root string) ([]*FileRecord, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), "WHERE file_path = ? OR substr(file_path, 1, ?) = ?", underArgs(root)...)
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *ChunkEmbedding) error {
	return t.storage.insertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) ListChunksByFile(ctx context.Context, fileID int64) ([]*ChunkEmbedding, error) {
	return t.storage.listChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteChunksByFile(ctx context.Context, fileID int64) (int, error) {
	return t.storage.deleteChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) CountChunks(ctx context.Context) (int, error) {
	return t.storage.countChunksWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
