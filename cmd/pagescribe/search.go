// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pagescribe/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over converted pages",
	Long: `Search runs an FTS5 query against every page stored with --db.
Results are ranked best match first and show a snippet with the matched
terms in brackets.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored document as markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := s.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(hits, jsonOutput)
}

func formatSearchOutput(hits []store.PageHit, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-24s  %-4s  %s\n", "Rank", "Document", "Page", "Snippet")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for i, h := range hits {
		name := h.DocumentID
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		snippet := strings.Join(strings.Fields(h.Snippet), " ")
		fmt.Fprintf(os.Stdout, "%-4d  %-24s  %-4d  %s\n", i+1, name, h.Page, snippet)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := s.Document(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(doc.Markdown(viper.GetString("separator")))
	return nil
}

// openStore opens --db, falling back to database_path from the config.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = viper.GetString("database_path")
	}
	if path == "" {
		return nil, fmt.Errorf("no database configured: pass --db or set database_path")
	}
	return store.Open(path)
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, showCmd} {
		c.Flags().String("db", "", "SQLite database written by convert --db")
	}
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
}
