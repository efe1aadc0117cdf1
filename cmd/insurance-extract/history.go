// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/insurance-extract/internal/history"
	"github.com/pdiddy/insurance-extract/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and export recorded extractions",
	Long: `History reads the local SQLite ledger of successful extractions.
Recording is off by default; enable it with history.enabled in the config
file or INSURANCE_EXTRACT_HISTORY_ENABLED=true.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent extractions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withHistory(cmd, func(store *history.Store) error {
			rows, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printSummaries(os.Stdout, rows, false)
			return nil
		})
	},
}

// --- search subcommand ---

var historySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over file names, OCR text and field values",
	Long: `Search runs an FTS5 query over recorded extractions. Quote terms that
contain punctuation, e.g. '"P-778"' for a policy number.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withHistory(cmd, func(store *history.Store) error {
			rows, err := store.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			printSummaries(os.Stdout, rows, true)
			return nil
		})
	},
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print one recorded extraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return withHistory(cmd, func(store *history.Store) error {
			e, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(e)
			}
			data, err := yaml.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshaling YAML: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		})
	},
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all recorded extractions to YAML or JSON",
	Long: `Export writes every recorded extraction, oldest first, to export.yaml
or export.json in the history directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withHistory(cmd, func(store *history.Store) error {
			var (
				path string
				err  error
			)
			switch format {
			case "yaml", "":
				path, err = store.ExportYAML(cmd.Context())
			case "json":
				path, err = store.ExportJSON(cmd.Context())
			default:
				return fmt.Errorf("unsupported format %q: use yaml or json", format)
			}
			if err != nil {
				return err
			}
			fmt.Println("Exported to", path)
			return nil
		})
	},
}

// --- shared helpers ---

func withHistory(cmd *cobra.Command, fn func(*history.Store) error) error {
	bindFlag(cmd, "history.dir", "history-dir")
	cfg := loadConfig()
	store, err := openHistory(cfg.History, true)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printSummaries(w io.Writer, rows []types.HistorySummary, withSnippet bool) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-19s  %-30s  %s\n", "ID", "Created", "File", "Fields")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, r := range rows {
		file := r.Filename
		if len(file) > 30 {
			file = file[:27] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-19s  %-30s  %d\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), file, r.FieldCount)
		if withSnippet && r.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(r.Snippet, "\n", " "))
		}
	}
	fmt.Fprintf(w, "\n%d results\n", len(rows))
}

func init() {
	historyCmd.PersistentFlags().String("history-dir", "", "directory holding history.db (default from config)")

	historyListCmd.Flags().Int("limit", 0, "maximum rows (0 = use default)")
	historySearchCmd.Flags().Int("limit", 0, "maximum rows (0 = use default)")
	historyShowCmd.Flags().Bool("json", false, "print JSON instead of YAML")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
