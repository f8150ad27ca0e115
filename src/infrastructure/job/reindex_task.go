package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ragdesk/src/core/rag"
	"ragdesk/src/log"
)

const TaskTypeReindex = "reindex"

type ReindexPayload struct {
	DocumentID int64  `json:"document_id"`
	Strategy   string `json:"strategy"`
}

// Reindexer re-chunks and re-embeds a stored document
type Reindexer interface {
	Reindex(ctx context.Context, documentID int64, strategy string) (*rag.Document, error)
}

type ReindexTask struct {
	reindexer Reindexer
}

func NewReindexTask(reindexer Reindexer) *ReindexTask {
	return &ReindexTask{reindexer: reindexer}
}

// HandleReindexTask runs one reindex job. Errors that another attempt cannot
// fix are wrapped with ErrPermanent.
func (t *ReindexTask) HandleReindexTask(ctx context.Context, payload json.RawMessage) error {
	var p ReindexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: failed to unmarshal reindex payload: %v", ErrPermanent, err)
	}
	if p.DocumentID == 0 {
		return fmt.Errorf("%w: reindex payload has no document id", ErrPermanent)
	}

	doc, err := t.reindexer.Reindex(ctx, p.DocumentID, p.Strategy)
	if err != nil {
		if isPermanentReindexError(err) {
			return fmt.Errorf("%w: failed to reindex document %d: %w", ErrPermanent, p.DocumentID, err)
		}
		return fmt.Errorf("failed to reindex document %d: %w", p.DocumentID, err)
	}

	log.Info("reindex task finished", "document_id", doc.ID, "strategy", doc.ChunkStrategy, "chunks", doc.ChunkCount)
	return nil
}

func isPermanentReindexError(err error) bool {
	return errors.Is(err, rag.ErrDocumentNotFound) ||
		errors.Is(err, rag.ErrEmptyDocument) ||
		errors.Is(err, rag.ErrUnsupportedFileType) ||
		errors.Is(err, rag.ErrInvalidRequest)
}
