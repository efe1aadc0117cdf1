// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/insurance-extract/internal/batch"
	"github.com/pdiddy/insurance-extract/internal/format"
	"github.com/pdiddy/insurance-extract/internal/remote"
	"github.com/pdiddy/insurance-extract/internal/session"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf files...]",
	Short: "Upload PDFs and print the extracted fields and text",
	Long: `Extract uploads each PDF to the extraction service and prints the
fields it found followed by the OCR text. Fields the service could not
find are shown as "Not Found". With --download the spreadsheet for each
file is saved to --output-dir.

Several files are processed with --concurrency uploads in flight; a
failure on one file does not stop the others.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Bool("download", false, "also save the spreadsheet for each file")
	extractCmd.Flags().String("output-dir", "", "directory for spreadsheets (default from config, else .)")
	extractCmd.Flags().Bool("html", false, "print the text as formatted HTML")
	extractCmd.Flags().String("format", "text", "output format: text, json or yaml")
	extractCmd.Flags().Int("concurrency", 0, "uploads in flight (default from config, else 1)")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more PDF files")
	}
	outFormat, _ := cmd.Flags().GetString("format")
	if outFormat != "text" && outFormat != "json" && outFormat != "yaml" {
		return fmt.Errorf("unsupported format %q: use text, json or yaml", outFormat)
	}
	asHTML, _ := cmd.Flags().GetBool("html")

	bindFlag(cmd, "batch.download", "download")
	bindFlag(cmd, "batch.concurrency", "concurrency")
	bindFlag(cmd, "download.dir", "output-dir")
	cfg := loadConfig()

	store, err := openHistory(cfg.History, false)
	if err != nil {
		return err
	}
	opts := batch.Options{
		Concurrency: cfg.Batch.Concurrency,
		Download:    cfg.Batch.Download,
		OutputDir:   cfg.Download.Dir,
	}
	if store != nil {
		defer store.Close()
		opts.Recorder = store
	}

	// Keep stdout parseable for structured formats.
	var progress io.Writer = os.Stdout
	if outFormat != "text" {
		progress = os.Stderr
	}

	client := remote.NewClient(cfg.Service)
	result := batch.Run(cmd.Context(), client, args, opts, progress)

	switch outFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Results()); err != nil {
			return err
		}
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(result.Results()); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		for _, it := range result.Items {
			if it.Err == nil {
				printState(os.Stdout, filepath.Base(it.Path), it.State, asHTML)
			}
		}
	}

	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed extraction", result.Failed)
	}
	return nil
}

// printState writes the field grid and raw text for one extraction.
func printState(w io.Writer, name string, s session.State, asHTML bool) {
	fmt.Fprintf(w, "\n== %s ==\n", name)
	if s.Analysis != nil {
		fmt.Fprintf(w, "Detected as %s: %d pages (%d text, %d image, %d mixed)\n",
			s.Analysis.Type, s.Analysis.TotalPages, s.Analysis.TextPages, s.Analysis.ImagePages, s.Analysis.MixedPages)
	}
	if s.Result != nil {
		width := 0
		for _, f := range s.Result.Fields {
			width = max(width, len(f.Name))
		}
		fmt.Fprintf(w, "%-*s  %s\n", width, "Field", "Value")
		fmt.Fprintln(w, strings.Repeat("-", width+2+20))
		for _, f := range s.Result.Fields {
			fmt.Fprintf(w, "%-*s  %s\n", width, f.Name, f.Display())
		}
	}

	fmt.Fprintln(w, "\n-- Extracted text --")
	if asHTML {
		fmt.Fprintln(w, format.ToHTML(s.RawText))
	} else {
		fmt.Fprintln(w, s.RawText)
	}
	if s.EntryID != "" {
		fmt.Fprintf(w, "\nRecorded in history as %s\n", s.EntryID)
	}
}
