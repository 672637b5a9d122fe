package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/Jj0520/FileWise-sub000/internal/app"
	"github.com/Jj0520/FileWise-sub000/internal/indexer"
	"github.com/Jj0520/FileWise-sub000/internal/searcher"
	"github.com/Jj0520/FileWise-sub000/internal/storage"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Folder does not exist or is not readable
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeProviderAuth       = -32003 // Provider rejected the credentials
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeGenerationDisabled = -32005 // No generation provider configured
)

// maxReportedErrors caps the error list in index_folder responses
const maxReportedErrors = 5

// maxSearchLimit bounds search_documents results per call
const maxSearchLimit = 100

// handleIndexFolder handles the index_folder tool invocation
func (s *Server) handleIndexFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrPathNotReadable) {
			code = ErrorCodePathNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	force := getBoolDefault(args, "force", false)

	stats, err := s.app.Index(ctx, path, force, nil)
	if err != nil {
		switch {
		case errors.Is(err, indexer.ErrIndexInProgress):
			return nil, newMCPError(ErrorCodeIndexingInProgress, "an indexing run is already in progress", nil)
		case errors.Is(err, types.ErrAuth):
			return nil, newMCPError(ErrorCodeProviderAuth, "embedding provider rejected the credentials", map[string]interface{}{
				"error":      err.Error(),
				"statistics": statisticsMap(stats),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":    true,
		"path":       path,
		"statistics": statisticsMap(stats),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	s.logger.Info("index_folder completed",
		zap.String("path", path),
		zap.Int("indexed", stats.FilesIndexed),
		zap.Duration("duration", stats.Duration))

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	resp, err := s.app.Searcher.Search(ctx, searcher.SearchRequest{Query: query, Limit: limit})
	if err != nil {
		if errors.Is(err, types.ErrAuth) {
			return nil, newMCPError(ErrorCodeProviderAuth, "embedding provider rejected the credentials", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"query":         query,
		"total_results": resp.TotalResults,
		"results":       resultMaps(resp.Results),
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListFiles handles the list_files tool invocation
func (s *Server) handleListFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	path := getStringDefault(args, "path", "")
	status := types.ExtractionStatus(getStringDefault(args, "status", ""))
	if status != "" && !status.Valid() {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid status", map[string]interface{}{
			"param":   "status",
			"value":   string(status),
			"allowed": []string{"ok", "partial", "empty", "encrypted", "failed"},
		})
	}
	if path != "" && !filepath.IsAbs(path) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": ErrPathNotAbsolute.Error(),
		})
	}

	var files []*storage.FileRecord
	var err error
	if path != "" {
		files, err = s.app.Storage.ListFilesUnder(ctx, filepath.Clean(path))
	} else {
		files, err = s.app.Storage.ListFiles(ctx)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list files", map[string]interface{}{
			"error": err.Error(),
		})
	}

	out := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		if status != "" && f.ExtractionStatus != status {
			continue
		}
		entry := map[string]interface{}{
			"path":          f.FilePath,
			"name":          f.FileName,
			"type":          f.FileType,
			"size":          f.FileSize,
			"modified_date": f.ModifiedDate.Format(time.RFC3339),
			"indexed_date":  f.IndexedDate.Format(time.RFC3339),
			"status":        string(f.ExtractionStatus),
		}
		if f.Diagnostic != "" {
			entry["diagnostic"] = f.Diagnostic
		}
		out = append(out, entry)
	}

	response := map[string]interface{}{
		"count": len(out),
		"files": out,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.app.Storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	byStatus := make(map[string]int, len(status.FilesByStatus))
	for st, n := range status.FilesByStatus {
		byStatus[string(st)] = n
	}

	response := map[string]interface{}{
		"indexed": status.FilesCount > 0,
		"statistics": map[string]interface{}{
			"files_count":     status.FilesCount,
			"chunks_count":    status.ChunksCount,
			"files_by_status": byStatus,
			"index_size_mb":   fmt.Sprintf("%.2f", status.IndexSizeMB),
			"embedding_dims":  status.EmbeddingsDims,
		},
		"index": map[string]interface{}{
			"schema_version": status.SchemaVersion,
			"driver":         status.DriverName,
			"running":        s.app.Indexer.Running(),
		},
		"providers": map[string]interface{}{
			"embedding":  s.app.Embedder.Provider(),
			"model":      s.app.Embedder.Model(),
			"generation": s.app.Generator != nil,
		},
	}
	if !status.LastIndexedAt.IsZero() {
		response["last_indexed_at"] = status.LastIndexedAt.Format(time.RFC3339)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAskDocuments handles the ask_documents tool invocation
func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	answer, err := s.app.Ask(ctx, question)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrGenerationDisabled):
			return nil, newMCPError(ErrorCodeGenerationDisabled, err.Error(), nil)
		case errors.Is(err, types.ErrAuth):
			return nil, newMCPError(ErrorCodeProviderAuth, "provider rejected the credentials", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to answer question", map[string]interface{}{
			"error": err.Error(),
		})
	}

	sources := make([]map[string]interface{}, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		sources = append(sources, map[string]interface{}{
			"file_path":   src.File.Path,
			"chunk_index": src.ChunkIndex,
			"score":       src.Score,
		})
	}

	response := map[string]interface{}{
		"question": answer.Question,
		"answer":   answer.Text,
		"sources":  sources,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// statisticsMap renders index statistics; stats may be nil
func statisticsMap(stats *indexer.Statistics) map[string]interface{} {
	if stats == nil {
		return nil
	}
	return map[string]interface{}{
		"files_scanned":   stats.FilesScanned,
		"files_indexed":   stats.FilesIndexed,
		"files_unchanged": stats.FilesUnchanged,
		"files_failed":    stats.FilesFailed,
		"files_partial":   stats.FilesPartial,
		"files_empty":     stats.FilesEmpty,
		"files_encrypted": stats.FilesEncrypted,
		"files_pruned":    stats.FilesPruned,
		"chunks_created":  stats.ChunksCreated,
		"chunks_failed":   stats.ChunksFailed,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
}

func resultMaps(results []types.SearchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]interface{}{
			"rank":        r.Rank,
			"score":       r.Score,
			"file_path":   r.File.Path,
			"file_name":   r.File.Name,
			"file_type":   r.File.Type,
			"chunk_index": r.ChunkIndex,
			"content":     r.Content,
		})
	}
	return out
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
