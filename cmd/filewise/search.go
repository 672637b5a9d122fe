package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jj0520/FileWise-sub000/internal/searcher"
	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

const snippetLength = 200

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the chunks most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			resp, err := a.Searcher.Search(cmd.Context(), searcher.SearchRequest{
				Query: strings.Join(args, " "),
				Limit: limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, resp.Results)
			}
			if resp.TotalResults == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			printResults(out, resp.Results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", searcher.DefaultLimit, "maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			answer, err := a.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if showSources && len(answer.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, src := range answer.Sources {
					fmt.Fprintf(out, "  %s (chunk %d, score %.3f)\n", src.File.Path, src.ChunkIndex, src.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", true, "list the chunks the answer was grounded on")
	return cmd
}

func printResults(w io.Writer, results []types.SearchResult) {
	for _, r := range results {
		fmt.Fprintf(w, "%2d. %s  [chunk %d, score %.3f]\n", r.Rank, r.File.Path, r.ChunkIndex, r.Score)
		fmt.Fprintf(w, "    %s\n\n", snippet(r.Content, snippetLength))
	}
}

// snippet flattens whitespace and truncates to max runes
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
