package main

import (
	"github.com/spf13/cobra"

	"github.com/Jj0520/FileWise-sub000/internal/mcp"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long:  "Serve exposes index_folder, search_documents, list_files, get_status and ask_documents to MCP clients over stdin/stdout. Logs go to stderr.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			return mcp.NewServer(a, version).Serve(cmd.Context())
		},
	}
}
