package weaviate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// SDK encapsulates all Weaviate operations
type SDK struct {
	client *weaviate.Client
}

// NewSDK creates a new instance of SDK
func NewSDK(client *weaviate.Client) *SDK {
	return &SDK{
		client: client,
	}
}

// Ready reports whether the Weaviate node accepts requests
func (w *SDK) Ready(ctx context.Context) error {
	ready, err := w.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check readiness: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready")
	}
	return nil
}

// CreateSchema creates a new class schema in Weaviate. The class is indexed
// with cosine distance and no server side vectorizer.
func (w *SDK) CreateSchema(ctx context.Context, className string, properties []*models.Property) error {
	class := &models.Class{
		Class:      className,
		Properties: properties,
		Vectorizer: "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
	}

	err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate class: %w", err)
	}

	return nil
}

// ClassExists checks if a class exists in the schema
func (w *SDK) ClassExists(ctx context.Context, className string) (bool, error) {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check if class exists: %w", err)
	}
	return exists, nil
}

// VectorObject represents a single object with its vector and properties
type VectorObject struct {
	ID         string
	Vector     []float32
	Properties map[string]interface{}
}

// BatchAddVectors writes objects to a class in a single operation. Objects
// with an existing ID are replaced.
func (w *SDK) BatchAddVectors(ctx context.Context, className string, objects []VectorObject) error {
	if len(objects) == 0 {
		return nil
	}

	objs := make([]*models.Object, len(objects))
	for i, obj := range objects {
		objs[i] = &models.Object{
			ID:         strfmt.UUID(obj.ID),
			Class:      className,
			Properties: obj.Properties,
			Vector:     obj.Vector,
		}
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add vectors: %w", err)
	}
	if len(resp) == 0 {
		return fmt.Errorf("batch operation returned no results")
	}

	// a failed object is reported inside the response, not as an error
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("failed to add vector %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}

	return nil
}

// QueryConfig represents configuration for vector similarity search
type QueryConfig struct {
	Fields []string // Fields to return in the result
	Limit  int      // Maximum number of results
}

const DefaultQueryLimit = 20

// QueryResult represents a single result from vector similarity search
type QueryResult struct {
	ID         string
	Score      float64 // Distance, or the fused score for hybrid search
	Properties map[string]interface{}
}

// QueryVectors performs vector similarity search in a class
func (w *SDK) QueryVectors(ctx context.Context, className string, vector []float32, config QueryConfig) ([]QueryResult, error) {
	fields := make([]graphql.Field, len(config.Fields))
	for i, field := range config.Fields {
		fields[i] = graphql.Field{Name: field}
	}
	fields = append(fields, graphql.Field{Name: "_additional { id distance }"})

	nearVectorBuilder := w.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	if config.Limit <= 0 {
		config.Limit = DefaultQueryLimit
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearVector(nearVectorBuilder).
		WithLimit(config.Limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("failed to query vectors: %s", result.Errors[0].Message)
	}

	return parseResults(result.Data, className, "distance"), nil
}

// DeleteVector deletes a vector object from a class by its ID. Deleting an
// object that does not exist is not an error.
func (w *SDK) DeleteVector(ctx context.Context, className string, id string) error {
	err := w.client.Data().Deleter().
		WithClassName(className).
		WithID(id).
		Do(ctx)

	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}

	return nil
}

func parseResults(data map[string]models.JSONObject, className, scoreField string) []QueryResult {
	queryResults := []QueryResult{}
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return queryResults
	}
	objects, ok := get[className].([]interface{})
	if !ok {
		return queryResults
	}

	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		properties := make(map[string]interface{})
		for k, v := range objMap {
			if k != "_additional" {
				properties[k] = v
			}
		}

		result := QueryResult{Properties: properties}
		if additional, ok := objMap["_additional"].(map[string]interface{}); ok {
			result.ID, _ = additional["id"].(string)
			result.Score = toFloat(additional[scoreField])
		}
		queryResults = append(queryResults, result)
	}
	return queryResults
}

// toFloat reads a numeric GraphQL value; hybrid scores arrive as strings.
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
