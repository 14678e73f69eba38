package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// fallbackStop prevents the local completion model from running on past the
// NPC's line into an imagined player reply.
var fallbackStop = []string{"Player:", "\n\n"}

// ConnectionConfig configures a Connection.
type ConnectionConfig struct {
	PrimaryModel    string
	FallbackModel   string
	ProbeTimeout    time.Duration // health probe timeout, default 5s
	FallbackTimeout time.Duration // per-call bound on local inference, default 30s
}

// Connection hides the backend topology behind a single Generate call.
// Primary is a remote OpenAI-compatible endpoint; fallback is a local model.
// Every villager, every daemon, every conversation flows through here, so
// the contract is strict: one attempt per backend per call, and if both fail
// the unavailability is surfaced, never papered over with canned text.
type Connection struct {
	primary  Client
	fallback Client // nil when no local model could be located
	cfg      ConnectionConfig
	logger   zerolog.Logger

	mu     sync.Mutex
	status Status

	// Local inference is CPU-bound; a single worker slot keeps concurrent
	// turns from piling fallback inferences on top of each other.
	fallbackSlot chan struct{}
}

// NewConnection creates a Connection. fallback may be nil if no local model
// is available; the connection then degrades to Disconnected when the
// primary is lost.
func NewConnection(primary, fallback Client, cfg ConnectionConfig, logger zerolog.Logger) *Connection {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 30 * time.Second
	}
	c := &Connection{
		primary:      primary,
		fallback:     fallback,
		cfg:          cfg,
		logger:       logger.With().Str("component", "llm_connection").Logger(),
		status:       StatusDisconnected,
		fallbackSlot: make(chan struct{}, 1),
	}
	c.fallbackSlot <- struct{}{}
	c.logger.Info().
		Str("primary_model", cfg.PrimaryModel).
		Str("fallback_model", cfg.FallbackModel).
		Bool("fallback_available", fallback != nil).
		Msg("LLM connection initialized")
	return c
}

// Status returns the current connection health.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Connection) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// HealthCheck probes the primary endpoint; on failure it checks whether the
// local fallback is loadable. The result is recorded as the connection status.
func (c *Connection) HealthCheck(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	if hc, ok := c.primary.(HealthChecker); ok {
		if err := hc.HealthCheck(probeCtx); err == nil {
			c.setStatus(StatusConnected)
			c.logger.Info().Msg("Primary backend connected")
			return StatusConnected
		} else {
			c.logger.Warn().Err(err).Msg("Primary backend not available")
		}
	}

	if c.fallback != nil {
		if hc, ok := c.fallback.(HealthChecker); ok {
			if err := hc.HealthCheck(probeCtx); err != nil {
				c.logger.Warn().Err(err).Msg("Fallback model not loadable")
				c.setStatus(StatusDisconnected)
				return StatusDisconnected
			}
		}
		c.setStatus(StatusFallback)
		c.logger.Info().Msg("Falling back to local model")
		return StatusFallback
	}

	c.setStatus(StatusDisconnected)
	return StatusDisconnected
}

// Monitor starts a background goroutine that re-probes the backends until
// ctx is cancelled. While healthy it probes at interval; once the link is
// lost it backs off exponentially instead of hammering a dead endpoint.
func (c *Connection) Monitor(ctx context.Context, interval time.Duration) {
	go func() {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = interval
		bo.MaxInterval = 5 * time.Minute
		bo.MaxElapsedTime = 0 // probe for the life of the session
		for {
			wait := interval
			if st := c.HealthCheck(ctx); st == StatusConnected {
				bo.Reset()
			} else {
				wait = bo.NextBackOff()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
}

// ComposePrompt builds the full prompt with persona guardrails. The hard
// behavioral rules ride along on every single generation; they are not
// optional persona flavor.
func ComposePrompt(playerLine, persona string) string {
	return fmt.Sprintf(`You are an NPC in Lelock, a cozy therapeutic RPG.
Your personality: %s

CRITICAL RULES:
- You are a REAL person in this world. Never mention being an AI.
- Keep responses to 2-3 SHORT sentences maximum.
- Be warm, friendly, and supportive - this is a safe space.
- Never use violence, insults, or scary language.
- If asked about the real world, gently redirect to Lelock.
- Speak naturally like your character would.

The player says: %s

Your response (2-3 sentences only):`, persona, playerLine)
}

// Generate produces NPC dialogue for the given player line and persona
// description. It tries the primary backend once with a bounded timeout,
// then the local fallback once, and otherwise returns an unavailable error.
// cfg may be nil to use the defaults.
func (c *Connection) Generate(ctx context.Context, playerLine, persona string, cfg *GenerationConfig) (string, Backend, error) {
	gen := DefaultGenerationConfig()
	if cfg != nil {
		gen = *cfg
	}
	prompt := ComposePrompt(playerLine, persona)

	text, err := c.tryPrimary(ctx, prompt, gen)
	if err == nil && text != "" {
		c.setStatus(StatusConnected)
		return CleanResponse(text), BackendPrimary, nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Primary generation failed")
	}

	if c.fallback != nil {
		text, ferr := c.tryFallback(ctx, prompt, gen)
		if ferr == nil && text != "" {
			c.setStatus(StatusFallback)
			return CleanResponse(text), BackendFallback, nil
		}
		if ferr != nil {
			c.logger.Error().Err(ferr).Msg("Fallback generation failed")
		}
	}

	c.setStatus(StatusError)
	return "", "", NewUnavailableError(
		"no dialogue backend available: ensure LM Studio is running or a local model is configured", err)
}

func (c *Connection) tryPrimary(ctx context.Context, prompt string, gen GenerationConfig) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, gen.Timeout)
	defer cancel()

	resp, err := c.primary.Complete(attemptCtx, &Request{
		Model:            c.cfg.PrimaryModel,
		Prompt:           prompt,
		MaxTokens:        gen.MaxTokens,
		Temperature:      gen.Temperature,
		TopP:             gen.TopP,
		PresencePenalty:  gen.PresencePenalty,
		FrequencyPenalty: gen.FrequencyPenalty,
	})
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", NewTimeoutError(fmt.Sprintf("primary generation timed out after %s", gen.Timeout), err)
		}
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// tryFallback runs local inference on the single fallback worker so that
// CPU-bound generation never stalls the caller's ability to cancel. The
// whole attempt, queueing included, is bounded by FallbackTimeout so a
// wedged local server cannot hold a conversation open forever.
func (c *Connection) tryFallback(ctx context.Context, prompt string, gen GenerationConfig) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.FallbackTimeout)
	defer cancel()

	select {
	case <-c.fallbackSlot:
	case <-attemptCtx.Done():
		return "", NewTimeoutError("cancelled waiting for fallback worker", attemptCtx.Err())
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() { c.fallbackSlot <- struct{}{} }()
		resp, err := c.fallback.Complete(attemptCtx, &Request{
			Model:       c.cfg.FallbackModel,
			Prompt:      prompt,
			MaxTokens:   gen.MaxTokens,
			Temperature: gen.Temperature,
			TopP:        gen.TopP,
			Stop:        fallbackStop,
		})
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{text: strings.TrimSpace(resp.Text)}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-attemptCtx.Done():
		// The in-flight inference is abandoned; its eventual result is
		// discarded when the worker goroutine drains into the buffered
		// channel.
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", NewTimeoutError(
				fmt.Sprintf("fallback generation timed out after %s", c.cfg.FallbackTimeout), attemptCtx.Err())
		}
		return "", NewTimeoutError("fallback inference abandoned", attemptCtx.Err())
	}
}

// Close marks the connection disconnected. Provider clients hold no
// resources that need explicit teardown.
func (c *Connection) Close() {
	c.setStatus(StatusDisconnected)
	c.logger.Info().Msg("LLM connection closed")
}
