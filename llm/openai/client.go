// Package openai adapts any OpenAI-compatible chat completion endpoint,
// including LM Studio's local server, to the llm.Client interface.
package openai

import (
	"context"
	"errors"
	"net"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/oakhaven/lelock/llm"
)

// Client talks to an OpenAI-compatible endpoint.
type Client struct {
	api *goopenai.Client
}

// New creates a client for the given base URL and API key. LM Studio
// accepts any non-empty key.
func New(baseURL, apiKey string) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{api: goopenai.NewClientWithConfig(cfg)}
}

// Complete sends a single-turn chat completion request.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:        req.MaxTokens,
		Temperature:      float32(req.Temperature),
		TopP:             float32(req.TopP),
		PresencePenalty:  float32(req.PresencePenalty),
		FrequencyPenalty: float32(req.FrequencyPenalty),
		Stop:             req.Stop,
	})
	if err != nil {
		return nil, convertError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewProviderError("completion returned no choices", nil)
	}
	return &llm.Response{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

// HealthCheck verifies the endpoint is reachable and has a model loaded.
// LM Studio answers ListModels with an empty list when no model is loaded,
// which is just as unusable as being down.
func (c *Client) HealthCheck(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return convertError(err)
	}
	if len(models.Models) == 0 {
		return llm.NewUnavailableError("endpoint is up but no model is loaded", nil)
	}
	return nil
}

// convertError maps provider errors onto the shared llm error taxonomy so
// callers can branch on type instead of string-matching messages.
func convertError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return llm.NewRateLimitError(apiErr.Message, nil, err)
		case apiErr.HTTPStatusCode >= 500:
			return llm.NewUnavailableError(apiErr.Message, err)
		default:
			e := llm.NewProviderError(apiErr.Message, err)
			e.StatusCode = apiErr.HTTPStatusCode
			return e
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return llm.NewTimeoutError("request timed out", err)
		}
		return llm.NewNetworkError("network error reaching endpoint", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewTimeoutError("request timed out", err)
	}
	return llm.NewNetworkError(err.Error(), err)
}
