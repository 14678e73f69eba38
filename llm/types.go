package llm

import "time"

// Status describes the health of the dialogue backend link.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusFallback     Status = "fallback"
	StatusError        Status = "error"
)

// Backend identifies which backend produced a completion.
type Backend string

const (
	BackendPrimary  Backend = "primary"
	BackendFallback Backend = "fallback"
)

// Request represents a completion request. The prompt is already fully
// composed (persona, rules, memories, player line); providers send it as a
// single user-role message.
type Request struct {
	Model            string
	Prompt           string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	Stop             []string
}

// Response represents a completion response.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// GenerationConfig holds sampling parameters and the per-attempt timeout.
// NPCs shouldn't freeze the game, so the timeout defaults low.
type GenerationConfig struct {
	MaxTokens        int
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	Timeout          time.Duration
}

// DefaultGenerationConfig returns the standard dialogue sampling parameters:
// short responses (2-3 sentences) with balanced creativity.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxTokens:        150,
		Temperature:      0.7,
		TopP:             0.9,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
		Timeout:          10 * time.Second,
	}
}
