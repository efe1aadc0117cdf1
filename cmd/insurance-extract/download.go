// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/insurance-extract/internal/batch"
	"github.com/pdiddy/insurance-extract/internal/remote"
	"github.com/pdiddy/insurance-extract/internal/session"
)

var downloadCmd = &cobra.Command{
	Use:   "download [result file]",
	Short: "Generate and save the spreadsheet for an extraction result",
	Long: `Download sends an extraction result to the service and saves the
spreadsheet it returns. The result comes from a JSON or YAML file, either
a single field/value object or the list printed by "extract --format",
or from the history database with --id.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("id", "", "history entry to download")
	downloadCmd.Flags().String("output-dir", "", "directory for spreadsheets (default from config, else .)")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	if (id == "") == (len(args) == 0) {
		return fmt.Errorf("provide either a result file or --id")
	}

	bindFlag(cmd, "download.dir", "output-dir")
	cfg := loadConfig()

	var results []batch.NamedResult
	if id != "" {
		store, err := openHistory(cfg.History, true)
		if err != nil {
			return err
		}
		defer store.Close()
		e, err := store.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		results = []batch.NamedResult{{File: e.Filename, RawText: e.RawText, Result: e.Result}}
	} else {
		var err error
		if results, err = loadResultFile(args[0]); err != nil {
			return err
		}
	}

	client := remote.NewClient(cfg.Service)
	failed := 0
	for _, r := range results {
		ctrl := session.New(client)
		ctrl.SetResult(r.Result, r.RawText)

		sheet, err := ctrl.Download(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed:  %s (%s)\n", r.File, ctrl.Snapshot().Error)
			failed++
			continue
		}
		path, err := remote.Save(sheet, cfg.Download.Dir)
		if err != nil {
			fmt.Fprintf(os.Stdout, "failed:  %s (%v)\n", r.File, err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stdout, "saved:   %s -> %s\n", r.File, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d download(s) failed", failed)
	}
	return nil
}

// loadResultFile reads results saved as JSON or YAML. A top-level object
// is one result; a list is the output of extract --format json|yaml.
func loadResultFile(path string) ([]batch.NamedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	name := filepath.Base(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if len(node.Content) == 1 && node.Content[0].Kind == yaml.SequenceNode {
			var list []batch.NamedResult
			if err := node.Decode(&list); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
			return list, nil
		}
		var one batch.NamedResult
		if err := node.Decode(&one.Result); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		one.File = name
		return []batch.NamedResult{one}, nil
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var list []batch.NamedResult
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return list, nil
	}
	var one batch.NamedResult
	if err := json.Unmarshal(data, &one.Result); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	one.File = name
	return []batch.NamedResult{one}, nil
}
