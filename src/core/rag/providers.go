package rag

import (
	"context"
)

// TextExtractor turns an uploaded file into plain UTF-8 text
type TextExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Embedder generates embeddings for the given input text
type Embedder interface {
	GetEmbedding(ctx context.Context, model string, input string) ([]float32, error)
}

// Generator produces a free-text completion for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorStore keeps chunk vectors in one collection per session
type VectorStore interface {
	// EnsureCollection creates the session's collection if it does not exist yet
	EnsureCollection(ctx context.Context, sessionID string) error
	// Upsert writes objects, replacing any with the same ID
	Upsert(ctx context.Context, sessionID string, objects []VectorObject) error
	// Delete removes objects by ID; missing objects are ignored
	Delete(ctx context.Context, sessionID string, ids []string) error
	// Search returns the text of the topK nearest chunks
	Search(ctx context.Context, sessionID string, vector []float32, query string, topK int) ([]string, error)
}

// ObjectStore keeps the raw uploaded files
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucketName, objectName string) ([]byte, error)
	DeleteObject(ctx context.Context, bucketName, objectName string) error
}

// DocumentRepository persists document metadata
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id int64) (*Document, error)
	ListBySession(ctx context.Context, sessionID string) ([]Document, error)
	UpdateChunks(ctx context.Context, id int64, strategy string, chunkCount int) error
}

// BookingRepository persists extracted bookings
type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	ListBySession(ctx context.Context, sessionID string) ([]Booking, error)
}

// Memory is the append-only conversation history of a session
type Memory interface {
	Append(ctx context.Context, sessionID string, entry MemoryEntry) error
	History(ctx context.Context, sessionID string) ([]MemoryEntry, error)
}
