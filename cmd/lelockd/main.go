package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/oakhaven/lelock/config"
	"github.com/oakhaven/lelock/dialogue"
	"github.com/oakhaven/lelock/llm"
	llmollama "github.com/oakhaven/lelock/llm/ollama"
	"github.com/oakhaven/lelock/llm/openai"
	lelocklogger "github.com/oakhaven/lelock/logger"
	"github.com/oakhaven/lelock/memory"
	memollama "github.com/oakhaven/lelock/memory/ollama"
	"github.com/oakhaven/lelock/migrations"
	"github.com/oakhaven/lelock/persona"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dbPath     = flag.String("db", "", "Path to SQLite database file (default: memory.path from config)")
		configPath = flag.String("config", "", "Path to config file (default: ~/.config/lelock/config.yaml)")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		player     = flag.String("player", "the player", "Player name used in character memories")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, err := lelocklogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if *configPath == "" {
		*configPath = config.GetConfigPath()
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *dbPath == "" {
		*dbPath = cfg.Memory.Path
	}
	logger.Info().Str("config", *configPath).Str("db", *dbPath).Msg("lelockd starting")

	// ---------------------------
	// 1. SQLite + memory store
	// ---------------------------

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	if err := migrations.RunMigrations(db, "./migrations", logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// The embedding model is optional: the store degrades to deterministic
	// hash embeddings when Ollama is not running.
	var embedder memory.Embedder
	if e, err := memollama.NewEmbedder(memollama.Model(cfg.Memory.EmbedModel)); err != nil {
		logger.Warn().Err(err).Msg("Embedding model unavailable, falling back to hash embeddings")
	} else {
		embedder = e
	}

	store, err := memory.NewStore(db, embedder, logger)
	if err != nil {
		return fmt.Errorf("failed to create memory store: %w", err)
	}

	// ---------------------------
	// 2. Dialogue backends
	// ---------------------------

	primary := openai.New(cfg.Primary.BaseURL, cfg.Primary.APIKey)

	var fallback llm.Client
	fallbackModel := cfg.Fallback.Model
	if _, ok := cfg.Fallback.FindFallbackModel(); ok {
		fb, err := llmollama.New(cfg.Fallback.Host, fallbackModel)
		if err != nil {
			logger.Warn().Err(err).Msg("Fallback model unusable, running without one")
		} else {
			fallback = fb
		}
	} else {
		logger.Warn().Msg("No local fallback model found, running without one")
	}

	conn := llm.NewConnection(primary, fallback, llm.ConnectionConfig{
		PrimaryModel:    cfg.Primary.Model,
		FallbackModel:   fallbackModel,
		ProbeTimeout:    time.Duration(cfg.HealthCheck) * time.Second,
		FallbackTimeout: time.Duration(cfg.Fallback.Timeout) * time.Second,
	}, logger)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.HealthCheck(ctx)
	conn.Monitor(ctx, 30*time.Second)

	// ---------------------------
	// 3. Personas + dialogue engine
	// ---------------------------

	personas, err := persona.NewManager(cfg.Personas.Dir, logger)
	if err != nil {
		return fmt.Errorf("failed to load personas: %w", err)
	}

	var summarizer memory.Summarizer
	if s, err := memollama.NewSummarizer(""); err == nil {
		summarizer = s
	} else {
		logger.Warn().Err(err).Msg("Reflection summarizer unavailable")
	}

	gen := llm.GenerationConfig{
		MaxTokens:        cfg.Generation.MaxTokens,
		Temperature:      cfg.Generation.Temperature,
		TopP:             cfg.Generation.TopP,
		PresencePenalty:  cfg.Generation.PresencePenalty,
		FrequencyPenalty: cfg.Generation.FrequencyPenalty,
		Timeout:          time.Duration(cfg.Primary.Timeout) * time.Second,
	}
	engine := dialogue.NewEngine(conn, store, personas, dialogue.Options{
		RetrieveK:     cfg.Memory.RetrieveK,
		MinImportance: cfg.Memory.MinImportance,
		PlayerName:    *player,
		Generation:    &gen,
		Summarizer:    summarizer,
	}, logger)

	// ---------------------------
	// 4. Memory maintenance
	// ---------------------------

	consolidator := memory.NewConsolidator(store, summarizer, cfg.Memory.MergeSimilarity, logger)
	maintenance := memory.NewMaintenance(consolidator, cfg.Memory.Schedule, logger)
	if err := maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start memory maintenance: %w", err)
	}
	defer maintenance.Stop()

	// ---------------------------
	// 5. Chat loop
	// ---------------------------

	// Trust moves during play; write the profiles back so the relationships
	// survive the session.
	savePersonas := func() {
		if err := personas.Save(); err != nil {
			logger.Error().Err(err).Msg("Failed to save persona profiles")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		savePersonas()
		os.Exit(0)
	}()

	err = chatLoop(ctx, engine, personas, store, logger)
	savePersonas()
	return err
}

// chatLoop reads "character: line" pairs from stdin and prints the NPC
// replies. Commands: /who lists characters, /day advances the game day,
// /quit exits.
func chatLoop(ctx context.Context, engine *dialogue.Engine, personas *persona.Manager, store *memory.Store, logger zerolog.Logger) error {
	fmt.Println("lelockd ready. Talk with \"<character>: <line>\", list with /who, quit with /quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/who":
			fmt.Printf("characters: %s\n", strings.Join(personas.IDs(), ", "))
			continue
		case line == "/day":
			day, err := store.AdvanceDay(ctx, 1)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			} else {
				fmt.Printf("day %d dawns in Lelock\n", day)
			}
			continue
		}

		characterID, playerLine, ok := strings.Cut(line, ":")
		if !ok {
			fmt.Println("say it like \"maple: good morning!\"")
			continue
		}
		characterID = strings.TrimSpace(characterID)
		playerLine = strings.TrimSpace(playerLine)

		turn, err := engine.Converse(ctx, characterID, playerLine)
		if err != nil {
			if dialogue.IsUnknownCharacter(err) {
				fmt.Printf("nobody called %q lives here (/who lists everyone)\n", characterID)
				continue
			}
			if llm.IsUnavailable(err) {
				fmt.Println("(no dialogue backend is available right now)")
				continue
			}
			logger.Error().Err(err).Msg("Turn failed")
			fmt.Printf("error: %v\n", err)
			continue
		}

		p, _ := personas.Get(characterID)
		fmt.Printf("%s: %s\n", p.Name, turn.Text)
	}
	return scanner.Err()
}
