// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a local ledger of successful extractions in SQLite
// with a full-text index over file names, OCR text and field values.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/insurance-extract/pkg/types"
)

const (
	dbFile = "history.db"

	// DefaultMaxResults limits List and Search when no limit is given.
	DefaultMaxResults = 20

	// timeFormat is fixed width so created_at sorts lexically.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history entry not found")

// Store manages the history database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// NewStore opens or creates dir/history.db and its schema.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := newStore(db, dir, cfg.MaxResults)
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func newStore(db *sql.DB, dir string, maxResults int) *Store {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Store{db: db, dir: dir, maxResults: maxResults}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS extractions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			filename TEXT NOT NULL,
			created_at TEXT NOT NULL,
			message TEXT,
			raw_text TEXT NOT NULL,
			fields_text TEXT NOT NULL,
			analysis TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions(created_at)`,
		`CREATE TABLE IF NOT EXISTS fields (
			extraction_id TEXT NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (extraction_id, position)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='extractions_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE extractions_fts USING fts5(
			filename, raw_text, fields_text,
			content=extractions, content_rowid=rowid
		)`,
		`CREATE TRIGGER extractions_ai AFTER INSERT ON extractions BEGIN
			INSERT INTO extractions_fts(rowid, filename, raw_text, fields_text)
			VALUES (new.rowid, new.filename, new.raw_text, new.fields_text);
		END`,
		`CREATE TRIGGER extractions_ad AFTER DELETE ON extractions BEGIN
			INSERT INTO extractions_fts(extractions_fts, rowid, filename, raw_text, fields_text)
			VALUES ('delete', old.rowid, old.filename, old.raw_text, old.fields_text);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// Record stores e, assigning a UUID and creation time when unset.
func (s *Store) Record(ctx context.Context, e *types.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var analysis sql.NullString
	if e.Analysis != nil {
		data, err := json.Marshal(e.Analysis)
		if err != nil {
			return fmt.Errorf("encoding analysis: %w", err)
		}
		analysis = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO extractions (id, filename, created_at, message, raw_text, fields_text, analysis)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Filename, e.CreatedAt.UTC().Format(timeFormat), e.Message,
		e.RawText, e.Result.RawText(), analysis,
	)
	if err != nil {
		return fmt.Errorf("inserting extraction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fields (extraction_id, position, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range e.Result.Fields {
		raw := strings.TrimSpace(string(f.Raw))
		if raw == "" {
			raw = "null"
		}
		if _, err := stmt.ExecContext(ctx, e.ID, i, f.Name, raw); err != nil {
			return fmt.Errorf("inserting field %q: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing extraction: %w", err)
	}
	return nil
}

// List returns the most recent entries first.
func (s *Store) List(ctx context.Context, limit int) ([]types.HistorySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.filename, e.created_at,
			(SELECT count(*) FROM fields f WHERE f.extraction_id = e.id)
		FROM extractions e
		ORDER BY e.created_at DESC, e.rowid DESC
		LIMIT ?`, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var out []types.HistorySummary
	for rows.Next() {
		var (
			sum     types.HistorySummary
			created string
		)
		if err := rows.Scan(&sum.ID, &sum.Filename, &created, &sum.FieldCount); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		sum.CreatedAt = parseTime(created)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Search runs an FTS5 query over file names, OCR text and field values,
// best match first. Each summary carries a highlighted snippet.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]types.HistorySummary, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty search query")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.filename, e.created_at,
			(SELECT count(*) FROM fields f WHERE f.extraction_id = e.id),
			snippet(extractions_fts, -1, '[', ']', '...', 12)
		FROM extractions_fts
		JOIN extractions e ON e.rowid = extractions_fts.rowid
		WHERE extractions_fts MATCH ?
		ORDER BY extractions_fts.rank
		LIMIT ?`, query, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()

	var out []types.HistorySummary
	for rows.Next() {
		var (
			sum     types.HistorySummary
			created string
		)
		if err := rows.Scan(&sum.ID, &sum.Filename, &created, &sum.FieldCount, &sum.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		sum.CreatedAt = parseTime(created)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads one entry with its fields in their original order.
func (s *Store) Get(ctx context.Context, id string) (*types.HistoryEntry, error) {
	var (
		e        types.HistoryEntry
		created  string
		message  sql.NullString
		analysis sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, created_at, message, raw_text, analysis
		FROM extractions WHERE id = ?`, id,
	).Scan(&e.ID, &e.Filename, &created, &message, &e.RawText, &analysis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading entry %s: %w", id, err)
	}
	e.CreatedAt = parseTime(created)
	e.Message = message.String

	if analysis.Valid && analysis.String != "" {
		var a types.PDFAnalysis
		if err := json.Unmarshal([]byte(analysis.String), &a); err != nil {
			return nil, fmt.Errorf("decoding analysis for %s: %w", id, err)
		}
		e.Analysis = &a
	}

	fields, err := s.loadFields(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Result = types.ExtractionResult{Fields: fields}
	return &e, nil
}

func (s *Store) loadFields(ctx context.Context, id string) ([]types.Field, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM fields WHERE extraction_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("loading fields for %s: %w", id, err)
	}
	defer rows.Close()

	var fields []types.Field
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		fields = append(fields, types.Field{Name: name, Raw: json.RawMessage(value)})
	}
	return fields, rows.Err()
}

func (s *Store) limit(n int) int {
	if n <= 0 {
		return s.maxResults
	}
	return n
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
