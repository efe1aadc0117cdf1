// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch extracts several PDFs concurrently, one session per file.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/insurance-extract/internal/remote"
	"github.com/pdiddy/insurance-extract/internal/session"
	"github.com/pdiddy/insurance-extract/pkg/types"
)

// Options controls a batch run.
type Options struct {
	// Concurrency is the number of uploads in flight. Values below one mean
	// one.
	Concurrency int

	// Download also requests and saves the spreadsheet for every file.
	Download bool

	// OutputDir receives spreadsheets when Download is set.
	OutputDir string

	Recorder session.Recorder
	Logger   *slog.Logger
}

// Item is the outcome for one input path.
type Item struct {
	Path  string
	State session.State

	// SavedPath is where the spreadsheet was written, if requested.
	SavedPath string

	Err error
}

// BatchResult holds the outcome of a batch run. Items follow input order.
type BatchResult struct {
	Extracted int
	Failed    int
	Items     []Item
}

// Total returns the number of paths processed.
func (r BatchResult) Total() int {
	return r.Extracted + r.Failed
}

// HasFailures reports whether any file failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Run processes every path, printing per-file status lines and a summary
// to w. It continues after individual failures.
func Run(ctx context.Context, ext session.Extractor, paths []string, opts Options, w io.Writer) BatchResult {
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, format, args...)
	}

	items := make([]Item, len(paths))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			items[i] = processFile(gctx, ext, path, opts, logger)
			it := items[i]
			name := filepath.Base(path)
			switch {
			case it.Err != nil:
				printf("failed:    %s (%v)\n", name, it.Err)
			case it.SavedPath != "":
				printf("extracted: %s (%d fields) -> %s\n", name, fieldCount(it.State), it.SavedPath)
			default:
				printf("extracted: %s (%d fields)\n", name, fieldCount(it.State))
			}
			return nil
		})
	}
	eg.Wait()

	var result BatchResult
	result.Items = items
	for _, it := range items {
		if it.Err != nil {
			result.Failed++
		} else {
			result.Extracted++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d extracted, %d failed (total: %d)\n",
		result.Extracted, result.Failed, result.Total())
	return result
}

func processFile(ctx context.Context, ext session.Extractor, path string, opts Options, logger *slog.Logger) Item {
	it := Item{Path: path}

	sessOpts := []session.Option{session.WithLogger(logger.With("file", path))}
	if opts.Recorder != nil {
		sessOpts = append(sessOpts, session.WithRecorder(opts.Recorder))
	}
	c := session.New(ext, sessOpts...)

	if err := c.SelectPath(path); err != nil {
		it.Err = err
		it.State = c.Snapshot()
		return it
	}
	if err := c.Upload(ctx); err != nil {
		it.State = c.Snapshot()
		it.Err = fmt.Errorf("%s: %w", it.State.Error, err)
		return it
	}

	if opts.Download {
		sheet, err := c.Download(ctx)
		if err != nil {
			it.State = c.Snapshot()
			it.Err = err
			return it
		}
		saved, err := remote.Save(sheet, opts.OutputDir)
		if err != nil {
			it.State = c.Snapshot()
			it.Err = err
			return it
		}
		it.SavedPath = saved
	}

	it.State = c.Snapshot()
	return it
}

func fieldCount(s session.State) int {
	if s.Result == nil {
		return 0
	}
	return s.Result.Len()
}

// Results returns the extraction results of successful items in input
// order, keyed by file name, for structured output.
func (r BatchResult) Results() []NamedResult {
	var out []NamedResult
	for _, it := range r.Items {
		if it.Err != nil || it.State.Result == nil {
			continue
		}
		out = append(out, NamedResult{
			File:    filepath.Base(it.Path),
			RawText: it.State.RawText,
			Result:  *it.State.Result,
		})
	}
	return out
}

// NamedResult pairs a file with its extraction for JSON and YAML output.
type NamedResult struct {
	File    string                 `json:"file" yaml:"file"`
	RawText string                 `json:"raw_text" yaml:"raw_text"`
	Result  types.ExtractionResult `json:"result" yaml:"result"`
}
