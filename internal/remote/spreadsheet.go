// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package remote

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/insurance-extract/pkg/types"
)

// DefaultSpreadsheetName is used when the service sends no usable filename.
const DefaultSpreadsheetName = "insurance_data.xlsx"

var dispositionFilename = regexp.MustCompile(`filename="(.+)"`)

// FilenameFromDisposition extracts the quoted filename from a
// Content-Disposition header value, e.g.
// `attachment; filename="quote123.xlsx"` yields "quote123.xlsx".
// An empty or non-matching header yields DefaultSpreadsheetName.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return DefaultSpreadsheetName
	}
	m := dispositionFilename.FindStringSubmatch(header)
	if m == nil {
		return DefaultSpreadsheetName
	}
	return m[1]
}

// SafeFilename reduces a service-provided name to a plain file name so it
// cannot escape the download directory.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." || strings.TrimSpace(base) == "" {
		return DefaultSpreadsheetName
	}
	return base
}

// maxNameAttempts bounds the numbered names Save tries.
const maxNameAttempts = 1000

// Save writes the spreadsheet into dir under its safe filename and returns
// the path written. An existing file is never replaced: the name gets a
// numbered suffix instead, "insurance_data (1).xlsx" and so on. The data
// goes to a temporary file first and is renamed into place, so a failed
// write never leaves a truncated spreadsheet.
func Save(s *types.Spreadsheet, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	destPath, err := reserve(dir, SafeFilename(s.Filename))
	if err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(s.Data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		os.Remove(destPath)
		return "", fmt.Errorf("writing spreadsheet: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		os.Remove(destPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	// Replaces only the empty placeholder reserve created.
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		os.Remove(destPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}

// reserve claims the first free name for name in dir by creating an empty
// file exclusively, so concurrent saves never pick the same path.
func reserve(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("creating %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
