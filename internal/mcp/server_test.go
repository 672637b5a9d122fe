package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jj0520/FileWise-sub000/internal/app"
	"github.com/Jj0520/FileWise-sub000/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DBPath:            filepath.Join(t.TempDir(), "filewise.db"),
		LogLevel:          "info",
		LogFormat:         "console",
		ChunkSize:         200,
		PDFWorkers:        1,
		Workers:           4,
		MaxDepth:          32,
		MinCallSpacing:    time.Millisecond,
		RateLimitBackoff:  time.Millisecond,
		EmbeddingProvider: config.ProviderLocal,
		OCRLanguages:      []string{"eng"},
		OCRDPI:            300,
		MinTextLength:     50,
		InlineLimitBytes:  20 << 20,
		CacheSize:         100,
	}
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return NewServer(a, "test")
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"lease.txt":        "The apartment lease expires in March and the rent is due monthly.",
		"recipes/bread.md": "# Bread\n\nMix flour, water and yeast, then bake for forty minutes.",
		"data.csv":         "city,population\nOslo,700000\nBergen,290000\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestIndexAndSearchTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	dir := writeDocs(t)

	result, err := s.handleIndexFolder(ctx, callRequest("index_folder", map[string]interface{}{"path": dir}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(3), stats["files_indexed"])

	result, err = s.handleSearchDocuments(ctx, callRequest("search_documents", map[string]interface{}{
		"query": "when does the lease expire",
		"limit": float64(2),
	}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	results := out["results"].([]interface{})
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "lease.txt", first["file_name"])
	assert.Equal(t, float64(1), first["rank"])

	// Unchanged rerun
	result, err = s.handleIndexFolder(ctx, callRequest("index_folder", map[string]interface{}{"path": dir}))
	require.NoError(t, err)
	stats = decodeResult(t, result)["statistics"].(map[string]interface{})
	assert.Equal(t, float64(0), stats["files_indexed"])
	assert.Equal(t, float64(3), stats["files_unchanged"])
}

func TestIndexFolderValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing path", map[string]interface{}{}, ErrorCodeInvalidParams},
		{"relative path", map[string]interface{}{"path": "docs"}, ErrorCodeInvalidParams},
		{"missing folder", map[string]interface{}{"path": filepath.Join(t.TempDir(), "nope")}, ErrorCodePathNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIndexFolder(ctx, callRequest("index_folder", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}

	_, err := s.handleIndexFolder(ctx, mcp.CallToolRequest{})
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSearchDocumentsValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleSearchDocuments(ctx, callRequest("search_documents", map[string]interface{}{"query": "  "}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchDocuments(ctx, callRequest("search_documents", map[string]interface{}{
		"query": "lease",
		"limit": float64(500),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestListFilesTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	dir := writeDocs(t)

	_, err := s.handleIndexFolder(ctx, callRequest("index_folder", map[string]interface{}{"path": dir}))
	require.NoError(t, err)

	result, err := s.handleListFiles(ctx, callRequest("list_files", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(3), decodeResult(t, result)["count"])

	result, err = s.handleListFiles(ctx, callRequest("list_files", map[string]interface{}{
		"path": filepath.Join(dir, "recipes"),
	}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	require.Equal(t, float64(1), out["count"])
	file := out["files"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "bread.md", file["name"])
	assert.Equal(t, "ok", file["status"])

	result, err = s.handleListFiles(ctx, callRequest("list_files", map[string]interface{}{"status": "failed"}))
	require.NoError(t, err)
	assert.Equal(t, float64(0), decodeResult(t, result)["count"])

	_, err = s.handleListFiles(ctx, callRequest("list_files", map[string]interface{}{"status": "broken"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestGetStatusTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, false, out["indexed"])

	_, err = s.handleIndexFolder(ctx, callRequest("index_folder", map[string]interface{}{"path": writeDocs(t)}))
	require.NoError(t, err)

	result, err = s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.Equal(t, true, out["indexed"])
	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(3), stats["files_count"])
	assert.Equal(t, float64(3), stats["files_by_status"].(map[string]interface{})["ok"])
	providers := out["providers"].(map[string]interface{})
	assert.Equal(t, "local", providers["embedding"])
	assert.Equal(t, false, providers["generation"])
	assert.Contains(t, out, "last_indexed_at")
}

func TestAskDocumentsTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleAskDocuments(ctx, callRequest("ask_documents", map[string]interface{}{"question": ""}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleAskDocuments(ctx, callRequest("ask_documents", map[string]interface{}{"question": "When does the lease end?"}))
	requireMCPError(t, err, ErrorCodeGenerationDisabled)
}

func TestToolDefinitions(t *testing.T) {
	tools := []mcp.Tool{indexFolderTool(), searchDocumentsTool(), listFilesTool(), getStatusTool(), askDocumentsTool()}
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"index_folder", "search_documents", "list_files", "get_status", "ask_documents"}, names)
	assert.Equal(t, []string{"path"}, indexFolderTool().InputSchema.Required)
	assert.Equal(t, []string{"query"}, searchDocumentsTool().InputSchema.Required)
}
