// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/insurance-extract/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(types.HistoryConfig{Enabled: true, Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func entry(filename, ocr string, at time.Time, fields ...types.Field) *types.HistoryEntry {
	return &types.HistoryEntry{
		Filename:  filename,
		CreatedAt: at,
		RawText:   ocr,
		Result:    types.ExtractionResult{Fields: fields},
	}
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// --- tests ---

func TestRecordAndGet(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	e := entry("policy.pdf", "--- Page 1 ---\nMOTOR POLICY", time.Time{},
		types.StringField("Current Policy number", "P-778"),
		types.NullField("Vehicle Number"),
		types.Field{Name: "Sum Insured", Raw: json.RawMessage("500000")},
	)
	e.Message = "PDF processed successfully."
	e.Analysis = &types.PDFAnalysis{Type: "text_dominant", TotalPages: 2, TextPages: 2}

	require.NoError(t, store.Record(ctx, e))
	assert.NotEmpty(t, e.ID, "Record assigns an ID")
	assert.False(t, e.CreatedAt.IsZero(), "Record assigns a timestamp")

	got, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "policy.pdf", got.Filename)
	assert.Equal(t, e.RawText, got.RawText)
	assert.Equal(t, e.Message, got.Message)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Analysis)
	assert.Equal(t, 2, got.Analysis.TotalPages)

	js, err := json.Marshal(got.Result)
	require.NoError(t, err)
	assert.Equal(t, `{"Current Policy number":"P-778","Vehicle Number":null,"Sum Insured":500000}`, string(js))
}

func TestGet_NotFound(t *testing.T) {
	store, _ := testStore(t)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		e := entry(name, "text", base.Add(time.Duration(i)*time.Hour), types.StringField("k", "v"))
		require.NoError(t, store.Record(ctx, e))
	}

	got, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c.pdf", got[0].Filename, "most recent first")
	assert.Equal(t, "a.pdf", got[2].Filename)
	assert.Equal(t, 1, got[0].FieldCount)

	got, err = store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearch(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, entry("motor.pdf", "Private car package policy", base,
		types.StringField("Current Policy number", "P-778"),
		types.StringField("Customer Name", "A. Kumar"))))
	require.NoError(t, store.Record(ctx, entry("health.pdf", "Family floater health cover", base.Add(time.Hour),
		types.StringField("Customer Name", "R. Iyer"))))

	tests := []struct {
		query string
		want  []string
	}{
		{"kumar", []string{"motor.pdf"}},
		{`"P-778"`, []string{"motor.pdf"}},
		{"floater", []string{"health.pdf"}},
		{"health", []string{"health.pdf"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := store.Search(ctx, tt.query, 0)
			require.NoError(t, err)
			var names []string
			for _, g := range got {
				names = append(names, g.Filename)
				assert.Contains(t, g.Snippet, "[")
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := store.Search(ctx, "  ", 0)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, entry("second.pdf", "two", base.Add(time.Hour),
		types.StringField("Z", "1"), types.StringField("A", "2"))))
	require.NoError(t, store.Record(ctx, entry("first.pdf", "one", base,
		types.StringField("Customer Name", "X"))))

	path, err := store.ExportJSON(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []types.HistoryEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "first.pdf", entries[0].Filename, "oldest first")
	assert.Equal(t, "Z", entries[1].Result.Fields[0].Name, "field order kept")

	path, err = store.ExportYAML(ctx)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)

	var yentries []types.HistoryEntry
	require.NoError(t, yaml.Unmarshal(data, &yentries))
	require.Len(t, yentries, 2)
	assert.Equal(t, "second.pdf", yentries[1].Filename)
	assert.Equal(t, []string{"Z", "A"}, []string{yentries[1].Result.Fields[0].Name, yentries[1].Result.Fields[1].Name})
}

func TestNewStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	cfg := types.HistoryConfig{Dir: dir}

	s1, err := NewStore(cfg)
	require.NoError(t, err)
	e := entry("a.pdf", "text", base)
	require.NoError(t, s1.Record(context.Background(), e))
	require.NoError(t, s1.Close())

	s2, err := NewStore(cfg)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got.Filename)
}

// --- failure paths ---

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStore(db, t.TempDir(), 0), mock
}

func TestRecord_BeginFails(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	err := store.Record(context.Background(), entry("a.pdf", "x", base))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beginning transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_InsertFailsRollsBack(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO extractions").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := store.Record(context.Background(), entry("a.pdf", "x", base))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inserting extraction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_QueryFails(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery("SELECT e.id, e.filename").WithArgs(DefaultMaxResults).
		WillReturnError(errors.New("no such table: extractions"))

	_, err := store.List(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NoRowsIsNotFound(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery("SELECT id, filename").WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "created_at", "message", "raw_text", "analysis"}))

	_, err := store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExport_QueryFails(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery("SELECT id FROM extractions").WillReturnError(errors.New("boom"))

	_, err := store.ExportJSON(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying for export")
}
