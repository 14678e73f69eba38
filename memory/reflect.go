package memory

import (
	"context"
	"strings"

	"github.com/samber/lo"
)

// minReflectionSources is how many recent observations a reflection needs
// before it is worth forming.
const minReflectionSources = 3

// Reflect condenses a character's recent observations into a single
// reflection memory. With fewer than three recent observations, nothing is
// created and ("", nil) is returned. The reflection inherits the highest
// source importance plus a small bump for being a distilled insight.
func (s *Store) Reflect(ctx context.Context, ownerID string, summarizer Summarizer) (string, error) {
	results, err := s.Retrieve(ctx, &RetrieveQuery{
		OwnerID: ownerID,
		K:       10,
		Types:   []MemoryType{TypeObservation},
	})
	if err != nil {
		return "", err
	}
	if len(results) < minReflectionSources {
		return "", nil
	}

	sources := lo.Map(results, func(r RetrieveResult, _ int) Memory { return *r.Memory })

	var insight string
	if summarizer != nil {
		insight, err = summarizer.SummarizeMemories(ctx, sources)
		if err != nil {
			s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("Summarizer failed, joining observations")
			insight = ""
		}
	}
	if insight == "" {
		contents := lo.Map(sources, func(m Memory, _ int) string { return m.Content })
		insight = "Thinking back on recent days: " + strings.Join(contents, " ")
	}

	importance := lo.MaxBy(sources, func(a, b Memory) bool { return a.Importance > b.Importance }).Importance
	importance = clamp01(importance + 0.1)

	if _, err := s.Record(ctx, ownerID, TypeReflection, insight, importance, nil); err != nil {
		return "", err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("insight", truncateString(insight, 60)).Msg("Reflection formed")
	return insight, nil
}
