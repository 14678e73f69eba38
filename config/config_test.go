package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Primary.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("unexpected default base url: %q", cfg.Primary.BaseURL)
	}
	if cfg.Memory.RetrieveK != 5 || cfg.Memory.MinImportance != 0.3 {
		t.Errorf("unexpected memory defaults: %+v", cfg.Memory)
	}
	if cfg.Generation.MaxTokens != 150 || cfg.Generation.Temperature != 0.7 {
		t.Errorf("unexpected generation defaults: %+v", cfg.Generation)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
primary:
  model: qwen2.5-7b-instruct
memory:
  retrieve_k: 8
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Primary.Model != "qwen2.5-7b-instruct" {
		t.Errorf("override not applied: %q", cfg.Primary.Model)
	}
	if cfg.Primary.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("untouched default should survive the merge: %q", cfg.Primary.BaseURL)
	}
	if cfg.Memory.RetrieveK != 8 {
		t.Errorf("retrieve_k override not applied: %d", cfg.Memory.RetrieveK)
	}
	if cfg.Memory.EmbedModel != "mxbai-embed-large" {
		t.Errorf("embed model default should survive the merge: %q", cfg.Memory.EmbedModel)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("primary: [not a map"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error for malformed yaml")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Primary.Model = "local-custom"

	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Primary.Model != "local-custom" {
		t.Errorf("round trip lost the model override: %q", loaded.Primary.Model)
	}
}

func TestFindFallbackModel(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "tinyllama-1.1b.gguf")
	if err := os.WriteFile(model, []byte("gguf"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fc := FallbackConfig{ModelPaths: []string{
		filepath.Join(dir, "missing.gguf"),
		model,
	}}
	got, ok := fc.FindFallbackModel()
	if !ok || got != model {
		t.Errorf("FindFallbackModel() = %q, %v; want %q, true", got, ok, model)
	}

	fc.ModelPaths = []string{filepath.Join(dir, "missing.gguf")}
	if _, ok := fc.FindFallbackModel(); ok {
		t.Error("expected no fallback model to be found")
	}
}
