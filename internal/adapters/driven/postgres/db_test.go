package postgres

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/assist")

	assert.Equal(t, "postgres://localhost/assist", cfg.URL)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
}

func TestSchema_DeclaresTables(t *testing.T) {
	for _, table := range []string{"knowledge_items", "insights", "uploaded_documents", "document_chunks"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schema, "CREATE EXTENSION IF NOT EXISTS vector")
}

func TestBankSearch_TieBreaksOnID(t *testing.T) {
	for name, query := range map[string]string{
		"knowledge": searchKnowledgeQuery,
		"insights":  searchInsightsQuery,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, query, "ORDER BY embedding <=> $1, id ASC")
		})
	}
}

func TestDecodeTags(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []domain.Tag
	}{
		{"nil column", nil, []domain.Tag{}},
		{"json null", []byte("null"), []domain.Tag{}},
		{"empty array", []byte("[]"), []domain.Tag{}},
		{
			"tags",
			[]byte(`[{"name":"ESMP","source_url":"https://example.com/esmp.pdf"},{"name":"Safety"}]`),
			[]domain.Tag{{Name: "ESMP", SourceURL: "https://example.com/esmp.pdf"}, {Name: "Safety"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTags(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeTags_Malformed(t *testing.T) {
	_, err := decodeTags([]byte(`{"name":`))
	assert.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, similarity(0), 1e-9)
	assert.InDelta(t, 0.25, similarity(0.75), 1e-9)
	assert.InDelta(t, -1.0, similarity(2), 1e-9)
}

func TestNullStringRoundTrip(t *testing.T) {
	assert.False(t, NullString(nil).Valid)
	assert.Nil(t, StringPtr(sql.NullString{}))

	v := "chat-1"
	ns := NullString(&v)
	require.True(t, ns.Valid)
	assert.Equal(t, "chat-1", *StringPtr(ns))
}

func TestOrderByIDs(t *testing.T) {
	byID := map[string]*domain.UploadedDocument{
		"a": {ID: "a"},
		"c": {ID: "c"},
	}

	docs := orderByIDs([]string{"c", "b", "a", "c"}, byID)

	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0].ID)
	assert.Equal(t, "a", docs[1].ID)
}

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *sql.NullString:
			*p = r.values[i].(sql.NullString)
		case *int64:
			*p = r.values[i].(int64)
		case *int:
			*p = r.values[i].(int)
		case *[]byte:
			*p = r.values[i].([]byte)
		}
	}
	return nil
}

func TestScanDocument_Unattached(t *testing.T) {
	row := fakeRow{values: []any{"doc-1", sql.NullString{}, "notes.txt", "text/plain", int64(42), 3, nil}}

	doc, err := scanDocument(row)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.False(t, doc.IsAttached())
	assert.Equal(t, int64(42), doc.SizeBytes)
	assert.Equal(t, 3, doc.ChunkCount)
}

func TestScanDocument_Attached(t *testing.T) {
	row := fakeRow{values: []any{"doc-1", sql.NullString{String: "chat-9", Valid: true}, "notes.txt", "text/plain", int64(1), 1, nil}}

	doc, err := scanDocument(row)
	require.NoError(t, err)
	assert.Equal(t, "chat-9", doc.ChatID)
}
