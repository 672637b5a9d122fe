package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jj0520/FileWise-sub000/internal/config"
	"github.com/Jj0520/FileWise-sub000/internal/indexer"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var (
		force      bool
		quiet      bool
		workers    int
		pdfWorkers int
		pdfDelay   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "index <folder>",
		Short: "Index every supported document under a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			a, err := opts.openApp(cmd.Context(), func(cfg *config.Config) {
				if cmd.Flags().Changed("workers") {
					cfg.Workers = workers
				}
				if cmd.Flags().Changed("pdf-workers") {
					cfg.PDFWorkers = pdfWorkers
				}
				if cmd.Flags().Changed("pdf-delay") {
					cfg.PDFTaskDelay = pdfDelay
				}
			})
			if err != nil {
				return err
			}
			defer closeApp(a)

			out := cmd.OutOrStdout()
			var progress indexer.ProgressFunc
			if !quiet {
				progress = progressPrinter(cmd.ErrOrStderr())
			}

			fmt.Fprintf(out, "Indexing %s...\n", root)
			stats, err := a.Index(cmd.Context(), root, force, progress)
			if stats != nil {
				printStatistics(out, stats)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-extract every file even when unchanged")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	cmd.Flags().IntVar(&workers, "workers", 50, "concurrent non-PDF files (env FILEWISE_WORKERS)")
	cmd.Flags().IntVar(&pdfWorkers, "pdf-workers", 2, "concurrent PDF files (env FILEWISE_PDF_WORKERS)")
	cmd.Flags().DurationVar(&pdfDelay, "pdf-delay", 500*time.Millisecond, "pause after each PDF per worker (env FILEWISE_PDF_TASK_DELAY)")
	return cmd
}

// progressPrinter writes a percentage line per processed file
func progressPrinter(w io.Writer) indexer.ProgressFunc {
	return func(fraction float64, status string) {
		fmt.Fprintf(w, "[%3.0f%%] %s\n", fraction*100, status)
	}
}

func printStatistics(w io.Writer, stats *indexer.Statistics) {
	fmt.Fprintf(w, "\nDone in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Files:   %d scanned, %d indexed, %d unchanged, %d failed\n",
		stats.FilesScanned, stats.FilesIndexed, stats.FilesUnchanged, stats.FilesFailed)
	if stats.FilesPartial+stats.FilesEmpty+stats.FilesEncrypted > 0 {
		fmt.Fprintf(w, "  Status:  %d partial, %d empty, %d encrypted\n",
			stats.FilesPartial, stats.FilesEmpty, stats.FilesEncrypted)
	}
	if stats.FilesPruned > 0 {
		fmt.Fprintf(w, "  Pruned:  %d deleted files\n", stats.FilesPruned)
	}
	fmt.Fprintf(w, "  Chunks:  %d created, %d failed\n", stats.ChunksCreated, stats.ChunksFailed)

	const maxErrors = 10
	for i, msg := range stats.ErrorMessages {
		if i == maxErrors {
			fmt.Fprintf(w, "  ... and %d more errors\n", len(stats.ErrorMessages)-maxErrors)
			break
		}
		fmt.Fprintf(w, "  ! %s\n", msg)
	}
}
