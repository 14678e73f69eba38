package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Store manages per-character memory persistence. Each character's memories
// are serialized behind an owner lock so concurrent conversations never
// interleave a character's reads and writes.
type Store struct {
	db       *sql.DB
	embedder Embedder
	fallback *HashEmbedder
	fts      bool
	logger   zerolog.Logger

	mu     sync.Mutex
	owners map[string]*sync.Mutex

	dayMu     sync.Mutex
	gameDay   int64
	dayLoaded bool
}

// NewStore creates and returns a Store. embedder may be nil; the store then
// relies entirely on the deterministic hash fallback. The fts5 keyword index
// is created here rather than in the migrations so a sqlite build without
// the fts5 module still gets a working store, just without keyword matching.
func NewStore(db *sql.DB, embedder Embedder, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "memory_store").Logger()

	fts := true
	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(content)`); err != nil {
		logger.Warn().Err(err).Msg("fts5 unavailable, keyword matching disabled")
		fts = false
	}

	logger.Info().
		Bool("has_embedder", embedder != nil).
		Bool("fts", fts).
		Msg("Initializing memory store")
	return &Store{
		db:       db,
		embedder: embedder,
		fallback: NewHashEmbedder(384),
		fts:      fts,
		logger:   logger,
		owners:   make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) ownerLock(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.owners[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		s.owners[ownerID] = lock
	}
	return lock
}

// embed produces a vector for text, degrading to the hash fallback when the
// embedding model is unreachable. Recording a memory never fails on an
// embedding outage.
func (s *Store) embed(ctx context.Context, text string) []float32 {
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err == nil {
			return vec
		}
		s.logger.Warn().Err(err).Msg("Embedding failed, using hash fallback")
	}
	vec, _ := s.fallback.Embed(ctx, text)
	return vec
}

// Record stores a memory for a character. Importance is clamped to [0, 1];
// a core tag forces importance to at least 0.9 and exempts the memory from
// decay.
func (s *Store) Record(
	ctx context.Context,
	ownerID string,
	typ MemoryType,
	content string,
	importance float64,
	tags []string,
) (Memory, error) {
	if ownerID == "" {
		return Memory{}, errors.New("owner id is empty")
	}
	if strings.TrimSpace(content) == "" {
		s.logger.Warn().Str("owner_id", ownerID).Msg("Attempted to record empty content")
		return Memory{}, errors.New("content is empty")
	}
	switch typ {
	case TypeObservation, TypeReflection, TypePlan:
	default:
		return Memory{}, fmt.Errorf("invalid memory type: %q", typ)
	}

	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	return s.recordLocked(ctx, ownerID, typ, content, importance, tags)
}

// recordLocked does the actual insert. The caller must hold the owner lock.
func (s *Store) recordLocked(
	ctx context.Context,
	ownerID string,
	typ MemoryType,
	content string,
	importance float64,
	tags []string,
) (Memory, error) {
	importance = clamp01(importance)
	core := lo.Contains(tags, TagCore)
	if core && importance < 0.9 {
		importance = 0.9
	}

	day, err := s.CurrentDay(ctx)
	if err != nil {
		return Memory{}, err
	}

	var tagsJSON []byte
	if len(tags) > 0 {
		tagsJSON, err = json.Marshal(tags)
		if err != nil {
			return Memory{}, fmt.Errorf("marshal tags: %w", err)
		}
	}

	embedding := s.embed(ctx, content)
	nowUnix := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Memory{}, err
	}
	defer func() { _ = tx.Rollback() }()

	query := StatementBuilder().
		Insert("memories").
		Columns("owner_id", "type", "content", "embedding", "importance",
			"core", "tags_json", "created_day", "last_accessed_day",
			"access_count", "created_at", "updated_at").
		Values(ownerID, string(typ), content, EncodeEmbedding(embedding), importance,
			core, tagsJSON, day, day, 0, nowUnix, nowUnix)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return Memory{}, fmt.Errorf("build insert query: %w", err)
	}

	res, err := tx.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Memory{}, err
	}

	if s.fts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO memories_fts (rowid, content) VALUES (?, ?)
`, id, content); err != nil {
			return Memory{}, fmt.Errorf("insert fts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Memory{}, err
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("type", string(typ)).
		Str("content", truncateString(content, 40)).
		Float64("importance", importance).
		Bool("core", core).
		Int64("id", id).
		Msg("Memory recorded")

	return Memory{
		ID:            id,
		OwnerID:       ownerID,
		Type:          typ,
		Content:       content,
		Embedding:     embedding,
		Importance:    importance,
		Core:          core,
		Tags:          append([]string(nil), tags...),
		CreatedDay:    day,
		LastAccessDay: day,
		CreatedAt:     time.Unix(nowUnix, 0),
		UpdatedAt:     time.Unix(nowUnix, 0),
	}, nil
}

// Retrieve returns the top-K memories for a character ranked by the
// composite score of importance, recency, retrieval frequency, and semantic
// relevance to the query text. Decayed memories are filtered out; returned
// memories get their access bookkeeping bumped.
func (s *Store) Retrieve(ctx context.Context, q *RetrieveQuery) ([]RetrieveResult, error) {
	if q == nil || q.OwnerID == "" {
		return nil, errors.New("owner id is required")
	}
	k := q.K
	if k <= 0 {
		k = 5
	}

	lock := s.ownerLock(q.OwnerID)
	lock.Lock()
	defer lock.Unlock()

	day, err := s.CurrentDay(ctx)
	if err != nil {
		return nil, err
	}

	builder := StatementBuilder().
		Select(selectMemoryColumns()...).
		From("memories").
		Where(sq.Eq{"owner_id": q.OwnerID})
	if len(q.Types) > 0 {
		types := lo.Map(q.Types, func(t MemoryType, _ int) string { return string(t) })
		builder = builder.Where(sq.Eq{"type": types})
	}
	if q.MinImportance > 0 {
		builder = builder.Where(sq.GtOrEq{"importance": q.MinImportance})
	}

	queryStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	memories, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}

	var queryVec []float32
	if q.QueryText != "" {
		queryVec = s.embed(ctx, q.QueryText)
	}
	// Keyword matches cover rows whose stored vectors came from a different
	// embedder and cannot be compared against the query vector.
	ftsIDs := s.ftsMatches(ctx, q.QueryText)

	results := make([]RetrieveResult, 0, len(memories))
	for i := range memories {
		m := &memories[i]
		if m.Decayed(day) {
			continue
		}
		if len(q.Tags) > 0 && !hasAllTags(m.Tags, q.Tags) {
			continue
		}
		rel := 0.5
		if len(queryVec) > 0 && len(m.Embedding) == len(queryVec) {
			rel = Relevance(CosineSimilarity(queryVec, m.Embedding))
		} else if ftsIDs[m.ID] {
			rel = 0.75
		}
		results = append(results, RetrieveResult{
			Memory:    m,
			Score:     scoreMemory(m, rel, day),
			Relevance: rel,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}

	if len(results) > 0 {
		ids := lo.Map(results, func(r RetrieveResult, _ int) int64 { return r.Memory.ID })
		if err := s.touch(ctx, ids, day); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to bump access bookkeeping")
		}
	}

	s.logger.Debug().
		Str("owner_id", q.OwnerID).
		Str("query", truncateString(q.QueryText, 40)).
		Int("candidates", len(memories)).
		Int("returned", len(results)).
		Msg("Memories retrieved")
	return results, nil
}

// ftsMatches returns the rowids whose content matches the query keywords.
func (s *Store) ftsMatches(ctx context.Context, queryText string) map[int64]bool {
	matches := make(map[int64]bool)
	words := strings.Fields(queryText)
	if !s.fts || len(words) == 0 {
		return matches
	}
	quoted := lo.Map(words, func(w string, _ int) string {
		return `"` + strings.ReplaceAll(w, `"`, "") + `"`
	})
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid FROM memories_fts WHERE memories_fts MATCH ?`,
		strings.Join(quoted, " OR "))
	if err != nil {
		s.logger.Debug().Err(err).Msg("FTS match failed")
		return matches
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err == nil {
			matches[id] = true
		}
	}
	return matches
}

func (s *Store) touch(ctx context.Context, ids []int64, day int64) error {
	queryStr, args, err := StatementBuilder().
		Update("memories").
		Set("last_accessed_day", day).
		Set("access_count", sq.Expr("access_count + 1")).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// Forget permanently removes one memory.
func (s *Store) Forget(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if s.fts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE rowid = ?`, id); err != nil {
			return fmt.Errorf("delete fts: %w", err)
		}
	}
	return tx.Commit()
}

// ForgetOwner removes every memory a character holds.
func (s *Store) ForgetOwner(ctx context.Context, ownerID string) error {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if s.fts {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM memories_fts WHERE rowid IN (SELECT id FROM memories WHERE owner_id = ?)
`, ownerID); err != nil {
			return fmt.Errorf("delete fts: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("delete memories: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info().Str("owner_id", ownerID).Msg("All memories forgotten")
	return nil
}

// Owners lists every character that currently holds memories.
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM memories ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// Summary reports what a character currently remembers.
func (s *Store) Summary(ctx context.Context, ownerID string) (OwnerSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, core, importance FROM memories WHERE owner_id = ?`, ownerID)
	if err != nil {
		return OwnerSummary{}, err
	}
	defer func() { _ = rows.Close() }()

	summary := OwnerSummary{OwnerID: ownerID, ByType: make(map[MemoryType]int)}
	var totalImportance float64
	for rows.Next() {
		var typ string
		var core bool
		var importance float64
		if err := rows.Scan(&typ, &core, &importance); err != nil {
			return OwnerSummary{}, err
		}
		summary.Total++
		summary.ByType[MemoryType(typ)]++
		if core {
			summary.CoreCount++
		}
		totalImportance += importance
	}
	if summary.Total > 0 {
		summary.AvgImportance = totalImportance / float64(summary.Total)
	}
	return summary, rows.Err()
}

// CurrentDay returns the in-game day counter.
func (s *Store) CurrentDay(ctx context.Context) (int64, error) {
	s.dayMu.Lock()
	defer s.dayMu.Unlock()
	if !s.dayLoaded {
		if err := s.loadDayLocked(ctx); err != nil {
			return 0, err
		}
	}
	return s.gameDay, nil
}

// AdvanceDay moves the in-game clock forward, driving memory decay.
func (s *Store) AdvanceDay(ctx context.Context, days int64) (int64, error) {
	if days < 0 {
		return 0, errors.New("cannot move the day backwards")
	}
	s.dayMu.Lock()
	defer s.dayMu.Unlock()
	if !s.dayLoaded {
		if err := s.loadDayLocked(ctx); err != nil {
			return 0, err
		}
	}
	s.gameDay += days
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO world_state (key, value) VALUES ('game_day', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value
`, strconv.FormatInt(s.gameDay, 10)); err != nil {
		return 0, fmt.Errorf("persist game day: %w", err)
	}
	s.logger.Info().Int64("game_day", s.gameDay).Msg("Game day advanced")
	return s.gameDay, nil
}

func (s *Store) loadDayLocked(ctx context.Context) error {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM world_state WHERE key = 'game_day'`).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.gameDay = 0
	case err != nil:
		return fmt.Errorf("load game day: %w", err)
	default:
		day, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("corrupt game day %q: %w", value, perr)
		}
		s.gameDay = day
	}
	s.dayLoaded = true
	return nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	defer func() { _ = rows.Close() }()
	var memories []Memory
	for rows.Next() {
		var (
			m         Memory
			typ       string
			blob      []byte
			tagsJSON  sql.NullString
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&m.ID, &m.OwnerID, &typ, &m.Content, &blob,
			&m.Importance, &m.Core, &tagsJSON, &m.CreatedDay,
			&m.LastAccessDay, &m.AccessCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.Type = MemoryType(typ)
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		m.Embedding = vec
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &m.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal tags: %w", err)
			}
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		m.UpdatedAt = time.Unix(updatedAt, 0)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func hasAllTags(have, want []string) bool {
	return lo.Every(have, want)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Helper to safely truncate strings for log safety.
func truncateString(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n]) + "..."
	}
	return s
}
