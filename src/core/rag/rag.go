package rag

import (
	"errors"
	"time"
)

var (
	ErrInvalidRequest      = errors.New("Invalid request")
	ErrUnsupportedFileType = errors.New("Unsupported file type. Only PDF and TXT are supported")
	ErrEmptyDocument       = errors.New("Document contains no extractable text")
	ErrDocumentNotFound    = errors.New("Document not found")
	ErrEmptyEmbedding      = errors.New("Embedding service returned an empty vector")
)

// Document is the metadata of one uploaded file.
type Document struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"sessionId"`
	Filename       string    `json:"filename"`
	Description    string    `json:"description"`
	ChunkStrategy  string    `json:"chunkStrategy"`
	EmbeddingModel string    `json:"embeddingModel"`
	ObjectURL      string    `json:"objectUrl"` // bucket/object
	ContentType    string    `json:"contentType"`
	Size           int64     `json:"size"`
	ChunkCount     int       `json:"chunkCount"`
	UploadTime     time.Time `json:"uploadTime"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Booking is an appointment request extracted from a chat query.
type Booking struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemoryEntry is one exchange of a session's conversation.
type MemoryEntry struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// VectorObject is a chunk with its embedding, ready for the vector store.
type VectorObject struct {
	ID         string
	DocumentID int64
	Filename   string
	Index      int
	Content    string
	Vector     []float32
}

// UploadRequest carries one uploaded file through the ingestion pipeline.
type UploadRequest struct {
	SessionID   string
	Filename    string
	Description string
	Strategy    string
	Content     []byte
}
