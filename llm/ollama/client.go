// Package ollama adapts a local Ollama server to the llm.Client interface
// for offline fallback generation.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/oakhaven/lelock/llm"
)

// Client runs completions against a local Ollama server.
type Client struct {
	api   *api.Client
	model string
}

// New creates a client for the Ollama server at host (e.g.
// "http://localhost:11434"). model is the default model used by health
// probes; per-request models come from llm.Request.
func New(host, model string) (*Client, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &Client{
		api:   api.NewClient(u, http.DefaultClient),
		model: model,
	}, nil
}

// Complete runs a non-streaming generation.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	options := map[string]any{
		"num_predict": req.MaxTokens,
		"temperature": req.Temperature,
		"top_p":       req.TopP,
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}

	stream := false
	var sb strings.Builder
	var lastResp api.GenerateResponse
	err := c.api.Generate(ctx, &api.GenerateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: options,
	}, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		lastResp = resp
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, llm.NewTimeoutError("local generation cancelled", err)
		}
		return nil, llm.NewProviderError("local generation failed", err)
	}
	return &llm.Response{
		Text:         sb.String(),
		InputTokens:  int64(lastResp.PromptEvalCount),
		OutputTokens: int64(lastResp.EvalCount),
	}, nil
}

// HealthCheck verifies the server is up and the fallback model is present.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.Show(ctx, &api.ShowRequest{Model: c.model}); err != nil {
		return llm.NewUnavailableError(fmt.Sprintf("model %s not loadable", c.model), err)
	}
	return nil
}
