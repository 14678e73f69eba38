// Package ollama provides Ollama-backed implementations of the memory
// package's Embedder and Summarizer interfaces.
package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/oakhaven/lelock/memory"
)

type Model string

const (
	ModelMXBAI Model = "mxbai-embed-large"
)

type embedder struct {
	client *api.Client
	model  Model
}

// NewEmbedder creates an Embedder backed by the Ollama server configured in
// the environment.
func NewEmbedder(model Model) (memory.Embedder, error) {
	cli, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}
	return &embedder{client: cli, model: model}, nil
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: string(e.model),
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return resp.Embeddings[0], nil
}
