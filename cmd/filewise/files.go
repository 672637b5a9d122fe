package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jj0520/FileWise-sub000/internal/storage"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

func newFilesCmd(opts *globalOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "files [folder]",
		Short: "List indexed files and their extraction status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := types.ExtractionStatus(status)
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			var files []*storage.FileRecord
			if len(args) == 1 {
				root, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				files, err = a.Storage.ListFilesUnder(cmd.Context(), root)
				if err != nil {
					return err
				}
			} else if files, err = a.Storage.ListFiles(cmd.Context()); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tSIZE\tINDEXED\tPATH\tDIAGNOSTIC")
			shown := 0
			for _, f := range files {
				if filter != "" && f.ExtractionStatus != filter {
					continue
				}
				shown++
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					f.ExtractionStatus, humanSize(f.FileSize),
					f.IndexedDate.Local().Format("2006-01-02 15:04"), f.FilePath, f.Diagnostic)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d files\n", shown)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only files with this status (ok, partial, empty, encrypted, failed)")
	return cmd
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			st, err := a.Storage.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database:   %s (%.2f MB, schema %s, driver %s)\n",
				a.Config.DBPath, st.IndexSizeMB, st.SchemaVersion, st.DriverName)
			fmt.Fprintf(out, "Files:      %d\n", st.FilesCount)

			statuses := make([]string, 0, len(st.FilesByStatus))
			for s := range st.FilesByStatus {
				statuses = append(statuses, string(s))
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(out, "  %-10s %d\n", s, st.FilesByStatus[types.ExtractionStatus(s)])
			}

			fmt.Fprintf(out, "Chunks:     %d\n", st.ChunksCount)
			if len(st.EmbeddingsDims) > 1 {
				fmt.Fprintf(out, "Warning:    stored vectors have mixed dimensions %v; re-index with --force\n", st.EmbeddingsDims)
			}
			if !st.LastIndexedAt.IsZero() {
				fmt.Fprintf(out, "Last index: %s\n", st.LastIndexedAt.Local().Format(time.RFC1123))
			}
			fmt.Fprintf(out, "Embedding:  %s (%s)\n", a.Embedder.Provider(), a.Embedder.Model())
			fmt.Fprintf(out, "Answering:  %v\n", a.Generator != nil)
			return nil
		},
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
