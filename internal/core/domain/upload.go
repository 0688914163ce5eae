package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// UploadedDocument is a user-supplied document registered for Q&A.
// ChatID is empty while the document is unattached.
type UploadedDocument struct {
	ID         string    `json:"document_id"`
	ChatID     string    `json:"chat_id,omitempty"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsAttached returns true if the document belongs to a chat
func (d *UploadedDocument) IsAttached() bool {
	return d.ChatID != ""
}

// DocumentChunk is one embedded excerpt of an uploaded document
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// ScoredChunk is a chunk returned by similarity search
type ScoredChunk struct {
	Chunk    *DocumentChunk
	Filename string
	Score    float64
}

// PriorTurn is client-supplied history for ephemeral document Q&A
type PriorTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// supportedUploadExtensions maps accepted text extensions to MIME types
var supportedUploadExtensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".log":  "text/plain",
}

// UploadMimeType returns the MIME type for a filename, or false if the format is unsupported
func UploadMimeType(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	mime, ok := supportedUploadExtensions[ext]
	return mime, ok
}
