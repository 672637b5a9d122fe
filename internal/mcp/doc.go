// Package mcp implements the Model Context Protocol (MCP) server for FileWise.
//
// The server exposes five tools to MCP clients:
//   - index_folder: Index every supported document under a folder
//   - search_documents: Semantic search over indexed chunks
//   - list_files: List indexed files and their extraction status
//   - get_status: Index statistics and provider information
//   - ask_documents: Answer a question from the indexed documents
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started with:
//
//	filewise serve
//
// Stdout carries protocol traffic only. Logs go to stderr.
//
// # Tool: index_folder
//
//	Request:
//	{
//	  "name": "index_folder",
//	  "arguments": {"path": "/home/me/Documents", "force": false}
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "path": "/home/me/Documents",
//	  "statistics": {
//	    "files_scanned": 412,
//	    "files_indexed": 37,
//	    "files_unchanged": 371,
//	    "files_failed": 1,
//	    "files_encrypted": 3,
//	    "chunks_created": 588,
//	    "duration_ms": 91234
//	  },
//	  "errors": ["scan.pdf: ..."]
//	}
//
// Only one index run is active per process. A second call while one is
// running fails with code -32002.
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {"query": "lease termination notice period", "limit": 5}
//	}
//
//	Response:
//	{
//	  "query": "lease termination notice period",
//	  "total_results": 5,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 0.83,
//	      "file_path": "/home/me/Documents/lease.pdf",
//	      "file_name": "lease.pdf",
//	      "file_type": "pdf",
//	      "chunk_index": 4,
//	      "content": "Either party may terminate ..."
//	    }
//	  ]
//	}
//
// # Tool: ask_documents
//
// Retrieves the top chunks for the question and asks the generation model to
// answer from them. Requires GEMINI_API_KEY; without it the call fails with
// code -32005.
//
// # Client Configuration
//
//	{
//	  "mcpServers": {
//	    "filewise": {
//	      "command": "/usr/local/bin/filewise",
//	      "args": ["serve"],
//	      "env": {"GEMINI_API_KEY": "your-api-key"}
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values:
//   - -32602: Invalid params (missing or invalid arguments)
//   - -32603: Internal error (database, filesystem, provider)
//   - -32001: Folder not found or not readable
//   - -32002: Indexing in progress
//   - -32003: Provider rejected the credentials
//   - -32004: Empty query
//   - -32005: Generation provider not configured
package mcp
