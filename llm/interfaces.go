package llm

import "context"

// Client provides a provider-neutral interface for completion calls.
// Implementations handle provider-specific request/response details.
type Client interface {
	// Complete sends a request and returns a complete response.
	// There is no streaming surface; dialogue lines are short and are
	// presented whole.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// HealthChecker is implemented by clients that can probe their backend.
type HealthChecker interface {
	// HealthCheck probes the backend and returns an error if it is not
	// ready to serve completions.
	HealthCheck(ctx context.Context) error
}
