package weaviate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/weaviate/weaviate/entities/models"

	"ragdesk/src/core/rag"
)

const (
	ClassPrefix = "RagDocument_"

	SearchModeVector = "vector"
	SearchModeHybrid = "hybrid"

	propContent    = "content"
	propDocumentID = "documentId"
	propFilename   = "filename"
	propChunkIndex = "chunkIndex"
)

// ClassName maps a session identifier to its Weaviate class. Letters and
// digits are kept; every other rune is written as _<hex> so that distinct
// sessions never share a class.
func ClassName(sessionID string) string {
	var b strings.Builder
	b.WriteString(ClassPrefix)
	for _, r := range sessionID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%x", r)
		}
	}
	return b.String()
}

// SessionStore keeps the chunks of each chat session in its own class.
type SessionStore struct {
	sdk  *SDK
	mode string
}

func NewSessionStore(sdk *SDK, mode string) (*SessionStore, error) {
	switch mode {
	case "":
		mode = SearchModeVector
	case SearchModeVector, SearchModeHybrid:
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
	return &SessionStore{sdk: sdk, mode: mode}, nil
}

func chunkProperties() []*models.Property {
	return []*models.Property{
		{Name: propContent, DataType: []string{"text"}},
		{Name: propDocumentID, DataType: []string{"text"}},
		{Name: propFilename, DataType: []string{"text"}},
		{Name: propChunkIndex, DataType: []string{"int"}},
	}
}

func (s *SessionStore) EnsureCollection(ctx context.Context, sessionID string) error {
	className := ClassName(sessionID)
	exists, err := s.sdk.ClassExists(ctx, className)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.sdk.CreateSchema(ctx, className, chunkProperties())
}

func (s *SessionStore) Upsert(ctx context.Context, sessionID string, objects []rag.VectorObject) error {
	batch := make([]VectorObject, len(objects))
	for i, obj := range objects {
		batch[i] = VectorObject{
			ID:     obj.ID,
			Vector: obj.Vector,
			Properties: map[string]interface{}{
				propContent:    obj.Content,
				propDocumentID: strconv.FormatInt(obj.DocumentID, 10),
				propFilename:   obj.Filename,
				propChunkIndex: obj.Index,
			},
		}
	}
	return s.sdk.BatchAddVectors(ctx, ClassName(sessionID), batch)
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string, ids []string) error {
	className := ClassName(sessionID)
	for _, id := range ids {
		if err := s.sdk.DeleteVector(ctx, className, id); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the content of the topK best matching chunks. A session
// that never indexed a document has no class and yields no results.
func (s *SessionStore) Search(ctx context.Context, sessionID string, vector []float32, query string, topK int) ([]string, error) {
	className := ClassName(sessionID)
	exists, err := s.sdk.ClassExists(ctx, className)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []string{}, nil
	}

	fields := []string{propContent}
	var results []QueryResult
	if s.mode == SearchModeHybrid {
		cfg := DefaultHybridConfig(query)
		cfg.Fields = fields
		cfg.Limit = topK
		results, err = s.sdk.QueryHybrid(ctx, className, vector, cfg)
	} else {
		results, err = s.sdk.QueryVectors(ctx, className, vector, QueryConfig{Fields: fields, Limit: topK})
	}
	if err != nil {
		return nil, err
	}

	return contents(results), nil
}

func contents(results []QueryResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if text, ok := r.Properties[propContent].(string); ok {
			out = append(out, text)
		}
	}
	return out
}
