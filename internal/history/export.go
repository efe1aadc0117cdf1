// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/insurance-extract/pkg/types"
)

// ExportYAML writes every entry, oldest first, to dir/export.yaml and
// returns the path written.
func (s *Store) ExportYAML(ctx context.Context) (string, error) {
	entries, err := s.all(ctx)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport("export.yaml", data)
}

// ExportJSON writes every entry, oldest first, to dir/export.json and
// returns the path written.
func (s *Store) ExportJSON(ctx context.Context) (string, error) {
	entries, err := s.all(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport("export.json", data)
}

func (s *Store) writeExport(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (s *Store) all(ctx context.Context) ([]types.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM extractions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]types.HistoryEntry, 0, len(ids))
	for _, id := range ids {
		e, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}
