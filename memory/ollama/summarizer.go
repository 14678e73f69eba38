package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/oakhaven/lelock/memory"
)

// Summarizer condenses memories into first-person reflections using a small
// local model.
type Summarizer struct {
	client *api.Client
	model  string
}

// NewSummarizer creates a Summarizer with the specified model. An empty
// model defaults to llama3.2:3b.
func NewSummarizer(model string) (*Summarizer, error) {
	if model == "" {
		model = "llama3.2:3b"
	}
	cli, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &Summarizer{client: cli, model: model}, nil
}

// SummarizeMemories distills a batch of memories into one short
// first-person insight, as the character would phrase it to themselves.
func (s *Summarizer) SummarizeMemories(ctx context.Context, memories []memory.Memory) (string, error) {
	if len(memories) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, m := range memories {
		sb.WriteString("- ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	systemPrompt := `You summarize a village character's recent memories into a single reflective thought.

Rules:
- Write in first person, as the character thinking to themselves
- One or two short sentences, plain text only
- Keep every important fact; drop repetition
- Warm and gentle tone, never frightening or harsh`

	userPrompt := fmt.Sprintf("Condense these memories into one reflective thought:\n\n%s", sb.String())

	var responseBuilder strings.Builder
	stream := false
	req := &api.GenerateRequest{
		Model:  s.model,
		Prompt: userPrompt,
		System: systemPrompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0.3,
		},
	}

	err := s.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		responseBuilder.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate reflection: %w", err)
	}

	summary := strings.TrimSpace(responseBuilder.String())
	if summary == "" {
		return "", fmt.Errorf("received empty reflection from model")
	}
	return summary, nil
}
