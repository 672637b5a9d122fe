package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Jj0520/FileWise-sub000/internal/searcher"
)

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

// indexFolderTool returns the tool definition for index_folder
func indexFolderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_folder",
		Description: "Index every supported document under a folder (PDF, Office, text, CSV, Markdown, HTML) so it can be searched",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the folder to index",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-extract every file even when its hash is unchanged",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
		Annotations: mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(false),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(true),
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over indexed documents. Returns the most similar text chunks with their files and scores.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     searcher.DefaultLimit,
					"minimum":     1,
					"maximum":     maxSearchLimit,
				},
			},
			Required: []string{"query"},
		},
		Annotations: readOnlyAnnotation,
	}
}

// listFilesTool returns the tool definition for list_files
func listFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_files",
		Description: "List indexed files with their extraction status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional absolute folder; only files under it are listed",
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Optional extraction status filter",
					"enum":        []string{"ok", "partial", "empty", "encrypted", "failed"},
				},
			},
		},
		Annotations: readOnlyAnnotation,
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics: file and chunk counts, files per status, database size and providers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
		Annotations: readOnlyAnnotation,
	}
}

// askDocumentsTool returns the tool definition for ask_documents
func askDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question using only the indexed documents. Requires a Gemini API key.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer",
				},
			},
			Required: []string{"question"},
		},
		Annotations: mcp.ToolAnnotation{
			ReadOnlyHint:  mcp.ToBoolPtr(true),
			OpenWorldHint: mcp.ToBoolPtr(true),
		},
	}
}
