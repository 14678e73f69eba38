// Package dialogue orchestrates NPC conversations: memory retrieval, prompt
// assembly, generation, content filtering, and relationship bookkeeping.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/oakhaven/lelock/llm"
	"github.com/oakhaven/lelock/memory"
	"github.com/oakhaven/lelock/persona"
)

// ErrUnknownCharacter is returned when a turn names a character that does
// not exist.
var ErrUnknownCharacter = errors.New("unknown character")

// IsUnknownCharacter reports whether err came from addressing a character
// the engine does not know.
func IsUnknownCharacter(err error) bool {
	return errors.Is(err, ErrUnknownCharacter)
}

// maxContentRetries bounds regeneration when the guardrail keeps blocking.
// After the last retry the engine falls back to a warm topic redirect.
const maxContentRetries = 3

// reflectionInterval is how many interactions pass between a character's
// reflections.
const reflectionInterval = 5

// state of one character's conversation loop.
type state int

const (
	stateIdle state = iota
	stateAwaitingModel
	statePresenting
)

// Trust movement per turn, keyed by the player's mood. Comforting an upset
// player deepens the relationship more than small talk.
var trustDeltaByMood = map[string]float64{
	MoodNeutral:  1,
	MoodPositive: 2,
	MoodUpset:    3,
	MoodFailure:  4,
}

// Importance of remembering the player's line, by mood. Emotional moments
// stick.
var importanceByMood = map[string]float64{
	MoodNeutral:  0.5,
	MoodPositive: 0.5,
	MoodUpset:    0.8,
	MoodFailure:  0.7,
}

const replyImportance = 0.3

// Generator produces one line of NPC dialogue. *llm.Connection satisfies it.
type Generator interface {
	Generate(ctx context.Context, playerLine, personaCtx string, cfg *llm.GenerationConfig) (string, llm.Backend, error)
}

// Options tunes the engine.
type Options struct {
	RetrieveK     int     // memories per prompt, default 5
	MinImportance float64 // retrieval floor, default 0.3
	PlayerName    string  // used for first-meeting memories, default "the player"
	Generation    *llm.GenerationConfig
	Summarizer    memory.Summarizer // optional, used for reflections
}

// Turn is the outcome of one exchange.
type Turn struct {
	CharacterID string
	Text        string
	Mood        string
	Backend     llm.Backend
	Filtered    bool // the shown line was rewritten or redirected
	TrustDelta  float64
	Trust       float64
	Latency     time.Duration
}

type characterState struct {
	mu           sync.Mutex
	state        state
	interactions int
	met          bool
}

// Engine runs conversations. Turns for the same character are serialized;
// different characters talk concurrently.
type Engine struct {
	generator Generator
	store     *memory.Store
	personas  *persona.Manager
	guardrail *persona.Guardrail
	opts      Options
	logger    zerolog.Logger

	mu         sync.Mutex
	characters map[string]*characterState
}

// NewEngine creates a dialogue engine.
func NewEngine(
	generator Generator,
	store *memory.Store,
	personas *persona.Manager,
	opts Options,
	logger zerolog.Logger,
) *Engine {
	if opts.RetrieveK <= 0 {
		opts.RetrieveK = 5
	}
	if opts.MinImportance <= 0 {
		opts.MinImportance = 0.3
	}
	if opts.PlayerName == "" {
		opts.PlayerName = "the player"
	}
	return &Engine{
		generator:  generator,
		store:      store,
		personas:   personas,
		guardrail:  persona.NewGuardrail(logger),
		opts:       opts,
		logger:     logger.With().Str("component", "dialogue").Logger(),
		characters: make(map[string]*characterState),
	}
}

func (e *Engine) character(id string) *characterState {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs, ok := e.characters[id]
	if !ok {
		cs = &characterState{}
		e.characters[id] = cs
	}
	return cs
}

// Converse runs one full exchange with a character. On backend failure it
// returns the error and records nothing, so the world never remembers a
// conversation that did not happen.
func (e *Engine) Converse(ctx context.Context, characterID, playerLine string) (*Turn, error) {
	p, err := e.personas.Get(characterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharacter, characterID)
	}

	cs := e.character(characterID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	started := time.Now()
	cs.state = stateAwaitingModel
	defer func() { cs.state = stateIdle }()

	mood := DetectMood(playerLine)

	results, err := e.store.Retrieve(ctx, &memory.RetrieveQuery{
		OwnerID:       characterID,
		QueryText:     playerLine,
		K:             e.opts.RetrieveK,
		MinImportance: e.opts.MinImportance,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve memories: %w", err)
	}
	remembered := lo.Map(results, func(r memory.RetrieveResult, _ int) persona.RememberedLine {
		return persona.RememberedLine{Kind: string(r.Memory.Type), Content: r.Memory.Content}
	})

	text, backend, filtered, err := e.generateSafe(ctx, &p, playerLine, remembered, mood)
	if err != nil {
		e.logger.Error().Err(err).Str("character", characterID).Msg("Turn failed")
		return nil, err
	}

	cs.state = statePresenting

	text = persona.EnsureWarmth(text, playerLine, &p, mood == MoodUpset || mood == MoodFailure)

	if err := e.recordExchange(ctx, characterID, playerLine, text, mood, cs); err != nil {
		e.logger.Warn().Err(err).Str("character", characterID).Msg("Failed to record exchange")
	}

	delta := trustDeltaByMood[mood]
	trust, err := e.personas.AdjustTrust(characterID, delta)
	if err != nil {
		return nil, err
	}

	cs.interactions++
	if cs.interactions%reflectionInterval == 0 {
		if _, err := e.store.Reflect(ctx, characterID, e.opts.Summarizer); err != nil {
			e.logger.Warn().Err(err).Str("character", characterID).Msg("Reflection failed")
		}
	}

	e.logger.Info().
		Str("character", characterID).
		Str("mood", mood).
		Str("backend", string(backend)).
		Bool("filtered", filtered).
		Dur("latency", time.Since(started)).
		Msg("Turn complete")

	return &Turn{
		CharacterID: characterID,
		Text:        text,
		Mood:        mood,
		Backend:     backend,
		Filtered:    filtered,
		TrustDelta:  delta,
		Trust:       trust,
		Latency:     time.Since(started),
	}, nil
}

// generateSafe generates a line and runs it through the guardrail, retrying
// with increasing strictness when the model produces blocked content. It
// never invents dialogue on backend failure; it only redirects when the
// model keeps answering unsafely.
func (e *Engine) generateSafe(
	ctx context.Context,
	p *persona.Persona,
	playerLine string,
	remembered []persona.RememberedLine,
	mood string,
) (string, llm.Backend, bool, error) {
	var backend llm.Backend
	for attempt := 0; attempt <= maxContentRetries; attempt++ {
		personaCtx := persona.BuildContext(p, remembered, mood, attempt)
		raw, b, err := e.generator.Generate(ctx, playerLine, personaCtx, e.opts.Generation)
		if err != nil {
			return "", "", false, err
		}
		backend = b

		text, verdict := e.guardrail.Filter(raw, p)
		switch verdict {
		case persona.VerdictAccepted:
			return text, backend, false, nil
		case persona.VerdictRewritten:
			return text, backend, true, nil
		}
		e.logger.Warn().
			Str("character", p.ID).
			Int("attempt", attempt+1).
			Msg("Generated dialogue blocked, retrying with stricter prompt")
	}
	return e.guardrail.Redirect(playerLine, p), backend, true, nil
}

// recordExchange commits both sides of the exchange to the character's
// memory. On the very first exchange the player's line itself becomes the
// core first-meeting memory rather than a separate record.
func (e *Engine) recordExchange(ctx context.Context, characterID, playerLine, reply, mood string, cs *characterState) error {
	firstMeeting := false
	if !cs.met {
		summary, err := e.store.Summary(ctx, characterID)
		if err != nil {
			return err
		}
		firstMeeting = summary.Total == 0
		cs.met = true
	}

	importance := importanceByMood[mood]
	content := fmt.Sprintf("%s said: %s", e.opts.PlayerName, playerLine)
	tags := []string{memory.TagPlayer}
	if mood == MoodUpset || mood == MoodFailure {
		tags = append(tags, memory.TagEmotional)
	}
	if firstMeeting {
		importance = 0.9
		content = fmt.Sprintf("I met %s for the first time today. %s", e.opts.PlayerName, content)
		tags = lo.Uniq(append(tags, memory.TagCore, memory.TagEmotional))
	}
	if _, err := e.store.Record(ctx, characterID, memory.TypeObservation,
		content, importance, tags); err != nil {
		return err
	}
	_, err := e.store.Record(ctx, characterID, memory.TypeObservation,
		fmt.Sprintf("I replied: %s", reply), replyImportance, nil)
	return err
}
