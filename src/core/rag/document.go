package rag

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"ragdesk/src/core/chunker"
	"ragdesk/src/log"
)

// vectorNamespace seeds the deterministic IDs of vector objects, so that
// re-indexing a document overwrites or deletes exactly its own chunks.
var vectorNamespace = uuid.MustParse("6f1c2b0e-3d4a-4e8b-9a57-2c1f0d9e8b41")

// VectorID returns the vector object ID of chunk index of a document.
func VectorID(documentID int64, index int) string {
	return uuid.NewSHA1(vectorNamespace, []byte(fmt.Sprintf("%d:%d", documentID, index))).String()
}

// DocumentService runs the ingestion pipeline: extract, chunk, store, embed, index.
type DocumentService struct {
	extractor      TextExtractor
	objects        ObjectStore
	bucket         string
	embedder       Embedder
	embeddingModel string
	vectors        VectorStore
	repo           DocumentRepository
	snowflake      *snowflake.Node
}

func NewDocumentService(extractor TextExtractor, objects ObjectStore, bucket string, embedder Embedder, embeddingModel string, vectors VectorStore, repo DocumentRepository) (*DocumentService, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	s := &DocumentService{
		extractor:      extractor,
		objects:        objects,
		bucket:         bucket,
		embedder:       embedder,
		embeddingModel: embeddingModel,
		vectors:        vectors,
		repo:           repo,
		snowflake:      node,
	}
	if err := s.validateDependencies(); err != nil {
		return nil, fmt.Errorf("failed to validate dependencies: %w", err)
	}
	return s, nil
}

func (s *DocumentService) validateDependencies() error {
	if s.extractor == nil {
		return fmt.Errorf("text extractor is required")
	}
	if s.objects == nil {
		return fmt.Errorf("object store is required")
	}
	if s.bucket == "" {
		return fmt.Errorf("document bucket is required")
	}
	if s.embedder == nil {
		return fmt.Errorf("embedder is required")
	}
	if s.embeddingModel == "" {
		return fmt.Errorf("embedding model is required")
	}
	if s.vectors == nil {
		return fmt.Errorf("vector store is required")
	}
	if s.repo == nil {
		return fmt.Errorf("document repository is required")
	}
	return nil
}

// Upload processes one file end to end and returns the stored document record.
func (s *DocumentService) Upload(ctx context.Context, req UploadRequest) (*Document, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}
	if req.Filename == "" || len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: a non-empty file is required", ErrInvalidRequest)
	}

	text, err := s.extractor.Extract(ctx, req.Filename, req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	strategy := chunker.ParseStrategy(req.Strategy)
	chunks := chunker.Chunk(text, string(strategy))
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	id := s.snowflake.Generate().Int64()
	ext := strings.ToLower(filepath.Ext(req.Filename))
	objectName := fmt.Sprintf("%s/%s%s", req.SessionID, uuid.New().String(), ext)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.objects.PutObject(ctx, s.bucket, objectName, req.Content, contentType); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	if err := s.index(ctx, req.SessionID, id, req.Filename, chunks); err != nil {
		s.discardObject(ctx, objectName)
		return nil, err
	}

	doc := &Document{
		ID:             id,
		SessionID:      req.SessionID,
		Filename:       req.Filename,
		Description:    req.Description,
		ChunkStrategy:  string(strategy),
		EmbeddingModel: s.embeddingModel,
		ObjectURL:      fmt.Sprintf("%s/%s", s.bucket, objectName),
		ContentType:    contentType,
		Size:           int64(len(req.Content)),
		ChunkCount:     len(chunks),
		UploadTime:     time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		s.discardObject(ctx, objectName)
		return nil, fmt.Errorf("failed to save document metadata: %w", err)
	}

	log.Info("document indexed",
		"document_id", id,
		"session_id", req.SessionID,
		"filename", req.Filename,
		"strategy", strategy,
		"chunks", len(chunks))
	return doc, nil
}

// Reindex re-chunks a stored document with another strategy and replaces its vectors.
func (s *DocumentService) Reindex(ctx context.Context, documentID int64, strategyName string) (*Document, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	content, err := s.content(ctx, doc)
	if err != nil {
		return nil, err
	}

	text, err := s.extractor.Extract(ctx, doc.Filename, content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	strategy := chunker.ParseStrategy(strategyName)
	chunks := chunker.Chunk(text, string(strategy))
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	// Objects past the new chunk count would otherwise survive the upsert.
	if doc.ChunkCount > len(chunks) {
		stale := make([]string, 0, doc.ChunkCount-len(chunks))
		for i := len(chunks); i < doc.ChunkCount; i++ {
			stale = append(stale, VectorID(doc.ID, i))
		}
		if err := s.vectors.Delete(ctx, doc.SessionID, stale); err != nil {
			return nil, fmt.Errorf("failed to delete stale vectors: %w", err)
		}
	}

	if err := s.index(ctx, doc.SessionID, doc.ID, doc.Filename, chunks); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateChunks(ctx, doc.ID, string(strategy), len(chunks)); err != nil {
		return nil, fmt.Errorf("failed to update document metadata: %w", err)
	}
	doc.ChunkStrategy = string(strategy)
	doc.ChunkCount = len(chunks)

	log.Info("document reindexed", "document_id", doc.ID, "strategy", strategy, "chunks", len(chunks))
	return doc, nil
}

// Get returns a document record or ErrDocumentNotFound.
func (s *DocumentService) Get(ctx context.Context, id int64) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Open returns a document record together with its raw uploaded bytes.
func (s *DocumentService) Open(ctx context.Context, id int64) (*Document, []byte, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	content, err := s.content(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, content, nil
}

func (s *DocumentService) content(ctx context.Context, doc *Document) ([]byte, error) {
	bucket, object, ok := strings.Cut(doc.ObjectURL, "/")
	if !ok {
		return nil, fmt.Errorf("invalid object URL format: %s", doc.ObjectURL)
	}
	content, err := s.objects.GetObject(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("failed to get document content: %w", err)
	}
	return content, nil
}

// List returns the documents uploaded in a session.
func (s *DocumentService) List(ctx context.Context, sessionID string) ([]Document, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidRequest)
	}
	return s.repo.ListBySession(ctx, sessionID)
}

// discardObject removes the raw file of an upload that did not complete.
func (s *DocumentService) discardObject(ctx context.Context, objectName string) {
	if err := s.objects.DeleteObject(ctx, s.bucket, objectName); err != nil {
		log.Error(err, "failed to remove object of failed upload", "object", objectName)
	}
}

// index embeds chunks and upserts them; vector i always belongs to chunk i.
func (s *DocumentService) index(ctx context.Context, sessionID string, documentID int64, filename string, chunks []string) error {
	vectors := make([][]float32, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := s.embedder.GetEmbedding(ctx, s.embeddingModel, chunk)
		if err != nil {
			return fmt.Errorf("failed to generate embedding for chunk %d: %w", i, err)
		}
		if len(vector) == 0 {
			return fmt.Errorf("%w: chunk %d", ErrEmptyEmbedding, i)
		}
		vectors = append(vectors, vector)
	}

	objects := make([]VectorObject, len(chunks))
	for i, chunk := range chunks {
		objects[i] = VectorObject{
			ID:         VectorID(documentID, i),
			DocumentID: documentID,
			Filename:   filename,
			Index:      i,
			Content:    chunk,
			Vector:     vectors[i],
		}
	}

	if err := s.vectors.EnsureCollection(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to ensure vector collection: %w", err)
	}
	if err := s.vectors.Upsert(ctx, sessionID, objects); err != nil {
		return fmt.Errorf("failed to store vectors: %w", err)
	}
	return nil
}
