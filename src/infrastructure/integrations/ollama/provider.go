package ollama

import (
	"context"
)

// Provider binds a client to one generation model.
type Provider struct {
	client    *Client
	modelName string
}

func NewProvider(client *Client, modelName string) *Provider {
	return &Provider{
		client:    client,
		modelName: modelName,
	}
}

func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.client.Generate(ctx, p.modelName, "", prompt, map[string]interface{}{
		"temperature": 0.7,
		"top_p":       0.9,
	})
}
