package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// PrimaryConfig configures the primary OpenAI-compatible backend (LM Studio).
type PrimaryConfig struct {
	BaseURL string `yaml:"base_url,omitempty"` // default: http://localhost:1234/v1
	APIKey  string `yaml:"api_key,omitempty"`  // LM Studio accepts any string
	Model   string `yaml:"model,omitempty"`    // default: local-model
	Timeout int    `yaml:"timeout,omitempty"`  // generation timeout in seconds
}

// FallbackConfig configures the local fallback model served by Ollama.
type FallbackConfig struct {
	Host       string   `yaml:"host,omitempty"`        // default: http://localhost:11434
	Model      string   `yaml:"model,omitempty"`       // e.g. tinyllama
	ModelPaths []string `yaml:"model_paths,omitempty"` // candidate GGUF locations, first match wins
	Timeout    int      `yaml:"timeout,omitempty"`     // inference timeout in seconds
}

// GenerationConfig holds sampling parameters for dialogue generation.
type GenerationConfig struct {
	MaxTokens        int     `yaml:"max_tokens,omitempty"`
	Temperature      float64 `yaml:"temperature,omitempty"`
	TopP             float64 `yaml:"top_p,omitempty"`
	PresencePenalty  float64 `yaml:"presence_penalty,omitempty"`
	FrequencyPenalty float64 `yaml:"frequency_penalty,omitempty"`
}

// MemoryConfig configures per-character durable memory.
type MemoryConfig struct {
	Path            string  `yaml:"path,omitempty"`             // sqlite database file
	EmbedModel      string  `yaml:"embed_model,omitempty"`      // ollama embedding model
	RetrieveK       int     `yaml:"retrieve_k,omitempty"`       // memories injected per turn
	MinImportance   float64 `yaml:"min_importance,omitempty"`   // retrieval floor
	MergeSimilarity float64 `yaml:"merge_similarity,omitempty"` // observation merge threshold during consolidation
	Schedule        string  `yaml:"schedule,omitempty"`         // cron spec for the consolidation pass
}

// PersonaConfig configures persona profile loading.
type PersonaConfig struct {
	Dir string `yaml:"dir,omitempty"` // directory of YAML persona profiles
}

// Config is the root configuration for the dialogue engine.
type Config struct {
	Primary     PrimaryConfig    `yaml:"primary,omitempty"`
	Fallback    FallbackConfig   `yaml:"fallback,omitempty"`
	Generation  GenerationConfig `yaml:"generation,omitempty"`
	Memory      MemoryConfig     `yaml:"memory,omitempty"`
	Personas    PersonaConfig    `yaml:"personas,omitempty"`
	HealthCheck int              `yaml:"health_check,omitempty"` // probe timeout in seconds
}

// Defaults returns the built-in configuration. NPC dialogue has to stay
// game-paced, so timeouts are short and responses are capped small.
func Defaults() Config {
	return Config{
		Primary: PrimaryConfig{
			BaseURL: "http://localhost:1234/v1",
			APIKey:  "lm-studio",
			Model:   "local-model",
			Timeout: 10,
		},
		Fallback: FallbackConfig{
			Host:  "http://localhost:11434",
			Model: "tinyllama",
			ModelPaths: []string{
				"./models/tinyllama-1.1b.gguf",
				"./data/models/tinyllama-1.1b.gguf",
				"~/.cache/lelock/models/tinyllama-1.1b.gguf",
			},
			Timeout: 30,
		},
		Generation: GenerationConfig{
			MaxTokens:        150,
			Temperature:      0.7,
			TopP:             0.9,
			PresencePenalty:  0.1,
			FrequencyPenalty: 0.1,
		},
		Memory: MemoryConfig{
			Path:            "./data/memories/lelock.db",
			EmbedModel:      "mxbai-embed-large",
			RetrieveK:       5,
			MinImportance:   0.3,
			MergeSimilarity: 0.92,
			Schedule:        "@weekly",
		},
		Personas: PersonaConfig{
			Dir: "./data/personas",
		},
		HealthCheck: 5,
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via LELOCK_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("LELOCK_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.lelock/config.yaml"
	}
	return filepath.Join(homeDir, ".lelock", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load loads the configuration from path, merged on top of Defaults.
// A missing file is not an error; the defaults are enough to run against a
// local LM Studio instance.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		return &cfg, nil
	}

	data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var userCfg Config
	if err := yaml.Unmarshal(data, &userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := mergo.Merge(&cfg, userCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindFallbackModel checks the configured candidate paths for a local GGUF
// model file and returns the first that exists. Absence is not fatal; the
// caller should log a warning and mark the fallback unavailable.
func (c *FallbackConfig) FindFallbackModel() (string, bool) {
	for _, p := range c.ModelPaths {
		expanded := expandPath(p)
		if _, err := os.Stat(expanded); err == nil {
			return expanded, true
		}
	}
	return "", false
}
