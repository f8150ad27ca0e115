package documentctrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragdesk/src/core/rag"
)

type Document struct {
	ID             int64  `gorm:"primaryKey"`
	SessionID      string `gorm:"not null;index"`
	Filename       string `gorm:"not null"`
	Description    string
	ChunkStrategy  string `gorm:"not null"`
	EmbeddingModel string `gorm:"not null"`
	MinioURL       string `gorm:"not null;column:minio_url"` // bucket name + object name
	ContentType    string
	Size           int64
	ChunkCount     int `gorm:"not null"`
	UploadTime     time.Time
	UpdatedAt      time.Time
}

func (Document) TableName() string {
	return "documents"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AutoMigrate creates or updates the documents table
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Document{})
}

func (r *Repository) Create(ctx context.Context, doc *rag.Document) error {
	model := toModel(doc)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	doc.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*rag.Document, error) {
	var model Document
	result := r.db.WithContext(ctx).First(&model, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", result.Error)
	}
	return toDomain(model), nil
}

func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]rag.Document, error) {
	var models []Document
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("upload_time DESC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list documents: %w", result.Error)
	}

	docs := make([]rag.Document, 0, len(models))
	for _, m := range models {
		docs = append(docs, *toDomain(m))
	}
	return docs, nil
}

func (r *Repository) UpdateChunks(ctx context.Context, id int64, strategy string, chunkCount int) error {
	result := r.db.WithContext(ctx).
		Model(&Document{ID: id}).
		Updates(map[string]interface{}{
			"chunk_strategy": strategy,
			"chunk_count":    chunkCount,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update document chunks: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return rag.ErrDocumentNotFound
	}
	return nil
}

func toModel(doc *rag.Document) *Document {
	return &Document{
		ID:             doc.ID,
		SessionID:      doc.SessionID,
		Filename:       doc.Filename,
		Description:    doc.Description,
		ChunkStrategy:  doc.ChunkStrategy,
		EmbeddingModel: doc.EmbeddingModel,
		MinioURL:       doc.ObjectURL,
		ContentType:    doc.ContentType,
		Size:           doc.Size,
		ChunkCount:     doc.ChunkCount,
		UploadTime:     doc.UploadTime,
	}
}

func toDomain(m Document) *rag.Document {
	return &rag.Document{
		ID:             m.ID,
		SessionID:      m.SessionID,
		Filename:       m.Filename,
		Description:    m.Description,
		ChunkStrategy:  m.ChunkStrategy,
		EmbeddingModel: m.EmbeddingModel,
		ObjectURL:      m.MinioURL,
		ContentType:    m.ContentType,
		Size:           m.Size,
		ChunkCount:     m.ChunkCount,
		UploadTime:     m.UploadTime,
		UpdatedAt:      m.UpdatedAt,
	}
}
