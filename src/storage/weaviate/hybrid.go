package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
)

// HybridConfig contains configuration for hybrid search
type HybridConfig struct {
	Query  string  // Text query for BM25
	Alpha  float32 // Weight for vector search (default: 0.75)
	Fields []string
	Limit  int
}

// DefaultHybridConfig returns default configuration for hybrid search
func DefaultHybridConfig(query string) HybridConfig {
	return HybridConfig{
		Query: query,
		Alpha: 0.75, // 75% vector search, 25% BM25
		Limit: DefaultQueryLimit,
	}
}

// QueryHybrid performs hybrid search combining vector similarity and BM25
func (w *SDK) QueryHybrid(ctx context.Context, className string, vector []float32, config HybridConfig) ([]QueryResult, error) {
	fields := make([]graphql.Field, len(config.Fields))
	for i, field := range config.Fields {
		fields[i] = graphql.Field{Name: field}
	}
	fields = append(fields, graphql.Field{Name: "_additional { id score }"})

	hybridBuilder := w.client.GraphQL().HybridArgumentBuilder().
		WithVector(vector).
		WithQuery(config.Query).
		WithAlpha(config.Alpha)

	limit := config.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithHybrid(hybridBuilder).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("failed to query vectors: %s", result.Errors[0].Message)
	}

	return parseResults(result.Data, className, "score"), nil
}
