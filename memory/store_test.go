package memory

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/oakhaven/lelock/migrations"

	_ "github.com/mattn/go-sqlite3"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1.0}, nil
}

// failingEmbedder simulates an embedding model outage.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, context.DeadlineExceeded
}

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A pooled second connection would see its own empty in-memory database.
	db.SetMaxOpenConns(1)

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	migrationsPath := filepath.Join(cwd, "..", "migrations")

	if err := migrations.RunMigrations(db, migrationsPath, zerolog.Nop()); err != nil {
		_ = db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func newTestStore(t *testing.T, embedder Embedder) *Store {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { _ = db.Close() })
	store, err := NewStore(db, embedder, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestRecordAndRetrieve(t *testing.T) {
	store := newTestStore(t, NewHashEmbedder(128))
	ctx := context.Background()

	_, err := store.Record(ctx, "maple", TypeObservation,
		"The player helped me carry flour to the bakery.", 0.6, []string{TagPlayer})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	results, err := store.Retrieve(ctx, &RetrieveQuery{
		OwnerID:   "maple",
		QueryText: "bakery flour",
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Memory.OwnerID != "maple" {
		t.Errorf("wrong owner: %s", results[0].Memory.OwnerID)
	}
	if results[0].Score <= 0 {
		t.Errorf("expected positive score, got %f", results[0].Score)
	}
}

func TestRecordRejectsEmptyContent(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	if _, err := store.Record(context.Background(), "maple", TypeObservation, "   ", 0.5, nil); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestRecordSurvivesEmbedderOutage(t *testing.T) {
	store := newTestStore(t, failingEmbedder{})
	ctx := context.Background()

	m, err := store.Record(ctx, "maple", TypeObservation, "We watched the sunset together.", 0.5, nil)
	if err != nil {
		t.Fatalf("Record should fall back to hash embedding: %v", err)
	}
	if len(m.Embedding) == 0 {
		t.Error("expected a fallback embedding")
	}

	results, err := store.Retrieve(ctx, &RetrieveQuery{OwnerID: "maple", QueryText: "sunset"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestCoreMemoryImportanceFloor(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})

	m, err := store.Record(context.Background(), "maple", TypeObservation,
		"I met Robin for the first time today.", 0.3, []string{TagCore})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !m.Core {
		t.Error("expected core memory")
	}
	if m.Importance < 0.9 {
		t.Errorf("core importance should be clamped to 0.9, got %f", m.Importance)
	}
}

func TestCoreMemoriesOutrankOrdinary(t *testing.T) {
	store := newTestStore(t, NewHashEmbedder(128))
	ctx := context.Background()

	if _, err := store.Record(ctx, "maple", TypeObservation, "It rained a little this morning.", 0.4, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.RememberSecret(ctx, "maple", "Robin", "they are afraid of thunderstorms"); err != nil {
		t.Fatalf("RememberSecret: %v", err)
	}

	results, err := store.Retrieve(ctx, &RetrieveQuery{OwnerID: "maple", QueryText: "weather"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Memory.Core {
		t.Errorf("core memory should rank first, got %q", results[0].Memory.Content)
	}
	if results[0].Score < 0.9 {
		t.Errorf("core score should be at least 0.9, got %f", results[0].Score)
	}
}

func TestDecayedMemoriesAreFiltered(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	ctx := context.Background()

	if _, err := store.Record(ctx, "maple", TypeObservation, "A sparrow landed on the windowsill.", 0.2, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.RememberSecret(ctx, "maple", "Robin", "they keep a diary"); err != nil {
		t.Fatalf("RememberSecret: %v", err)
	}

	// importance 0.2 decays after 20 game days
	if _, err := store.AdvanceDay(ctx, 30); err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}

	results, err := store.Retrieve(ctx, &RetrieveQuery{OwnerID: "maple"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected only the core memory, got %d results", len(results))
	}
	if !results[0].Memory.Core {
		t.Errorf("surviving memory should be the core one, got %q", results[0].Memory.Content)
	}
}

func TestRetrieveBumpsAccessBookkeeping(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	ctx := context.Background()

	if _, err := store.Record(ctx, "maple", TypeObservation, "The player waved hello.", 0.5, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.Retrieve(ctx, &RetrieveQuery{OwnerID: "maple"}); err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
	}

	var count int64
	if err := store.db.QueryRow(`SELECT access_count FROM memories WHERE owner_id = 'maple'`).Scan(&count); err != nil {
		t.Fatalf("query access_count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected access_count 3, got %d", count)
	}
}

func TestRetrieveEmptyOwnerIsEmpty(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})

	results, err := store.Retrieve(context.Background(), &RetrieveQuery{OwnerID: "nobody"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRetrieveRespectsK(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	ctx := context.Background()

	lines := []string{
		"We talked about the harvest.",
		"The player brought fresh bread.",
		"Robin hummed a new song.",
		"The well needed a new rope.",
		"Festival lanterns went up today.",
		"A letter arrived from the city.",
		"The orchard bloomed early.",
	}
	for _, line := range lines {
		if _, err := store.Record(ctx, "maple", TypeObservation, line, 0.5, nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	results, err := store.Retrieve(ctx, &RetrieveQuery{OwnerID: "maple"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("expected default K of 5, got %d", len(results))
	}
}

func TestConvenienceRecorders(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	ctx := context.Background()

	gift, err := store.RememberGift(ctx, "maple", "sunflower", "It made my whole day brighter!")
	if err != nil {
		t.Fatalf("RememberGift: %v", err)
	}
	if gift.Importance != 0.7 {
		t.Errorf("gift importance = %f, want 0.7", gift.Importance)
	}
	if !strings.Contains(gift.Content, "gave me a sunflower") {
		t.Errorf("unexpected gift content: %q", gift.Content)
	}

	secret, err := store.RememberSecret(ctx, "maple", "Robin", "they want to be a sailor")
	if err != nil {
		t.Fatalf("RememberSecret: %v", err)
	}
	if !secret.Core || secret.Importance < 0.9 {
		t.Errorf("secrets should be core with importance >= 0.9, got core=%v importance=%f",
			secret.Core, secret.Importance)
	}

	promise, err := store.RememberPromise(ctx, "maple", "Robin", "bake a birthday cake")
	if err != nil {
		t.Fatalf("RememberPromise: %v", err)
	}
	if promise.Type != TypePlan {
		t.Errorf("promises should be plans, got %s", promise.Type)
	}
	if !strings.Contains(promise.Content, "I promised Robin that I would: bake a birthday cake") {
		t.Errorf("unexpected promise content: %q", promise.Content)
	}
}

func TestStoreRunsWithoutFullTextIndex(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	store.fts = false
	ctx := context.Background()

	if _, err := store.Record(ctx, "maple", TypeObservation, "The player fixed the mill wheel.", 0.6, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	results, err := store.Retrieve(ctx, &RetrieveQuery{OwnerID: "maple", QueryText: "mill wheel"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result without keyword index, got %d", len(results))
	}

	c := NewConsolidator(store, nil, 0, zerolog.Nop())
	if _, err := c.ClearDecayed(ctx); err != nil {
		t.Fatalf("ClearDecayed: %v", err)
	}
	if err := store.Forget(ctx, results[0].Memory.ID); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if err := store.ForgetOwner(ctx, "maple"); err != nil {
		t.Fatalf("ForgetOwner: %v", err)
	}
}

func TestRecordWitnessedAll(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	ctx := context.Background()

	err := store.RecordWitnessedAll(ctx, "Fireworks lit up the square at the harvest festival.", 0.6,
		"maple", "robin")
	if err != nil {
		t.Fatalf("RecordWitnessedAll: %v", err)
	}

	for _, owner := range []string{"maple", "robin"} {
		summary, err := store.Summary(ctx, owner)
		if err != nil {
			t.Fatalf("Summary(%s): %v", owner, err)
		}
		if summary.Total != 1 {
			t.Errorf("%s should remember the fireworks, got %d memories", owner, summary.Total)
		}
	}
}

func TestForgetOwner(t *testing.T) {
	store := newTestStore(t, stubEmbedder{})
	ctx := context.Background()

	if _, err := store.Record(ctx, "maple", TypeObservation, "Something to forget.", 0.5, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.Record(ctx, "robin", TypeObservation, "Something to keep.", 0.5, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := store.ForgetOwner(ctx, "maple"); err != nil {
		t.Fatalf("ForgetOwner: %v", err)
	}

	mapleSummary, err := store.Summary(ctx, "maple")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if mapleSummary.Total != 0 {
		t.Errorf("expected maple to have no memories, got %d", mapleSummary.Total)
	}
	robinSummary, err := store.Summary(ctx, "robin")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if robinSummary.Total != 1 {
		t.Errorf("robin's memories should be untouched, got %d", robinSummary.Total)
	}
}

func TestGameDayPersists(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	store, err := NewStore(db, stubEmbedder{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.AdvanceDay(ctx, 12); err != nil {
		t.Fatalf("AdvanceDay: %v", err)
	}

	// A new store over the same database sees the advanced clock.
	store2, err := NewStore(db, stubEmbedder{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	day, err := store2.CurrentDay(ctx)
	if err != nil {
		t.Fatalf("CurrentDay: %v", err)
	}
	if day != 12 {
		t.Errorf("expected game day 12, got %d", day)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}
	zero := []float32{0, 0, 0}

	if got := CosineSimilarity(a, b); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical vectors: got %f, want 1.0", got)
	}
	if got := CosineSimilarity(a, c); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: got %f, want 0", got)
	}
	if got := CosineSimilarity(a, zero); got != 0 {
		t.Errorf("zero-norm vector: got %f, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{1, 0}); got != 0 {
		t.Errorf("mismatched lengths: got %f, want 0", got)
	}
	if got, want := CosineSimilarity(a, c), CosineSimilarity(c, a); got != want {
		t.Errorf("similarity should be symmetric: %f vs %f", got, want)
	}
}

func TestHashEmbedderSimilarTextsLandClose(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	bread1, _ := e.Embed(ctx, "the player brought fresh bread today")
	bread2, _ := e.Embed(ctx, "fresh bread from the player")
	storm, _ := e.Embed(ctx, "thunderstorms frighten the cat")

	similar := CosineSimilarity(bread1, bread2)
	dissimilar := CosineSimilarity(bread1, storm)
	if similar <= dissimilar {
		t.Errorf("overlapping texts should score higher: similar=%f dissimilar=%f", similar, dissimilar)
	}
}
