package memory

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Consolidator performs periodic memory upkeep: clearing decayed memories
// and merging near-duplicate observations into reflections. It mirrors what
// sleep does for people, which is why it runs on a weekly schedule.
type Consolidator struct {
	store           *Store
	summarizer      Summarizer // optional
	mergeSimilarity float64
	logger          zerolog.Logger
}

// NewConsolidator creates a Consolidator. mergeSimilarity is the cosine
// threshold above which two observations are considered near-duplicates;
// values at or below zero default to 0.92.
func NewConsolidator(store *Store, summarizer Summarizer, mergeSimilarity float64, logger zerolog.Logger) *Consolidator {
	if mergeSimilarity <= 0 {
		mergeSimilarity = 0.92
	}
	return &Consolidator{
		store:           store,
		summarizer:      summarizer,
		mergeSimilarity: mergeSimilarity,
		logger:          logger.With().Str("component", "memory_consolidator").Logger(),
	}
}

// Run consolidates every character's memories.
func (c *Consolidator) Run(ctx context.Context) error {
	owners, err := c.store.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	cleared, merr := c.ClearDecayed(ctx)
	if merr != nil {
		c.logger.Error().Err(merr).Msg("Failed to clear decayed memories")
	}
	var merged int
	for _, owner := range owners {
		n, err := c.MergeNearDuplicates(ctx, owner)
		if err != nil {
			c.logger.Error().Err(err).Str("owner_id", owner).Msg("Merge pass failed")
			continue
		}
		merged += n
	}
	c.logger.Info().
		Int64("cleared", cleared).
		Int("merged", merged).
		Int("owners", len(owners)).
		Msg("Consolidation pass complete")
	return merr
}

// ClearDecayed deletes observations that have outlived their importance
// horizon and were rarely retrieved. Core memories, reflections, and plans
// are never touched.
func (c *Consolidator) ClearDecayed(ctx context.Context) (int64, error) {
	day, err := c.store.CurrentDay(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if c.store.fts {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM memories_fts WHERE rowid IN (
    SELECT id FROM memories
    WHERE type = 'observation' AND core = 0 AND access_count < 3
      AND (? - created_day) > importance * 100
)`, day); err != nil {
			return 0, fmt.Errorf("delete decayed fts: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `
DELETE FROM memories
WHERE type = 'observation' AND core = 0 AND access_count < 3
  AND (? - created_day) > importance * 100
`, day)
	if err != nil {
		return 0, fmt.Errorf("delete decayed memories: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// MergeNearDuplicates folds groups of highly similar observations into a
// single reflection, keeping the strongest importance of the group.
func (c *Consolidator) MergeNearDuplicates(ctx context.Context, ownerID string) (int, error) {
	lock := c.store.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	queryStr, args, err := StatementBuilder().
		Select(selectMemoryColumns()...).
		From("memories").
		Where(sq.Eq{"owner_id": ownerID, "type": string(TypeObservation), "core": false}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return 0, err
	}
	rows, err := c.store.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return 0, err
	}
	observations, err := scanMemories(rows)
	if err != nil {
		return 0, err
	}

	merged := 0
	used := make(map[int64]bool)
	for i := range observations {
		a := &observations[i]
		if used[a.ID] {
			continue
		}
		group := []Memory{*a}
		for j := i + 1; j < len(observations); j++ {
			b := &observations[j]
			if used[b.ID] {
				continue
			}
			if CosineSimilarity(a.Embedding, b.Embedding) >= c.mergeSimilarity {
				group = append(group, *b)
				used[b.ID] = true
			}
		}
		if len(group) < 2 {
			continue
		}
		used[a.ID] = true

		if err := c.mergeGroup(ctx, ownerID, group); err != nil {
			return merged, err
		}
		merged++
	}
	return merged, nil
}

func (c *Consolidator) mergeGroup(ctx context.Context, ownerID string, group []Memory) error {
	var insight string
	var err error
	if c.summarizer != nil {
		insight, err = c.summarizer.SummarizeMemories(ctx, group)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Summarizer failed, joining contents")
			insight = ""
		}
	}
	if insight == "" {
		contents := lo.Map(group, func(m Memory, _ int) string { return m.Content })
		insight = strings.Join(lo.Uniq(contents), " ")
	}

	importance := lo.MaxBy(group, func(a, b Memory) bool { return a.Importance > b.Importance }).Importance

	if _, err := c.store.recordLocked(ctx, ownerID, TypeReflection, insight, importance, nil); err != nil {
		return err
	}
	for _, m := range group {
		if err := c.store.Forget(ctx, m.ID); err != nil {
			return err
		}
	}
	c.logger.Debug().
		Str("owner_id", ownerID).
		Int("sources", len(group)).
		Str("insight", truncateString(insight, 60)).
		Msg("Merged near-duplicate observations")
	return nil
}
