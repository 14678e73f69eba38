package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrUnknownPersona is returned when no character with the given id exists.
var ErrUnknownPersona = errors.New("unknown persona")

// Manager holds the loaded character roster and owns trust bookkeeping.
type Manager struct {
	mu       sync.RWMutex
	personas map[string]*Persona
	dir      string
	logger   zerolog.Logger
}

// NewManager creates a Manager seeded with the built-in family characters.
// dir may be empty when no character files exist on disk yet.
func NewManager(dir string, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		personas: make(map[string]*Persona),
		dir:      dir,
		logger:   logger.With().Str("component", "persona_manager").Logger(),
	}
	for _, p := range Builtins() {
		m.personas[p.ID] = p
	}
	if dir != "" {
		if err := m.loadDir(dir); err != nil {
			return nil, err
		}
	}
	m.logger.Info().Int("count", len(m.personas)).Msg("Personas loaded")
	return m, nil
}

// loadDir reads every persona YAML file in dir. Files on disk override the
// built-in characters with the same id.
func (m *Manager) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug().Str("dir", dir).Msg("Persona directory does not exist, using builtins")
			return nil
		}
		return fmt.Errorf("read persona dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read persona %s: %w", name, err)
		}
		var p Persona
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parse persona %s: %w", name, err)
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		if p.Name == "" {
			return fmt.Errorf("persona %s has no name", name)
		}
		p.Trust = clampTrust(p.Trust)
		m.personas[p.ID] = &p
		m.logger.Debug().Str("id", p.ID).Str("name", p.Name).Msg("Persona loaded from file")
	}
	return nil
}

// Get returns a copy of the persona so callers cannot mutate trust without
// going through AdjustTrust.
func (m *Manager) Get(id string) (Persona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.personas[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	return *p, nil
}

// IDs lists the loaded character ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.personas))
	for id := range m.personas {
		ids = append(ids, id)
	}
	return ids
}

// AdjustTrust shifts a character's trust by delta, clamped to [0, 100], and
// returns the new value.
func (m *Manager) AdjustTrust(id string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	before := p.Trust
	p.Trust = clampTrust(p.Trust + delta)
	if TrustTier(before) != TrustTier(p.Trust) {
		m.logger.Info().
			Str("id", id).
			Str("tier", p.Tier()).
			Float64("trust", p.Trust).
			Msg("Relationship tier changed")
	}
	return p.Trust, nil
}

// Save writes every persona to its own YAML file under the manager's dir.
func (m *Manager) Save() error {
	if m.dir == "" {
		return errors.New("no persona directory configured")
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create persona dir: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, p := range m.personas {
		data, err := yaml.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal persona %s: %w", id, err)
		}
		path := filepath.Join(m.dir, id+".yaml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write persona %s: %w", id, err)
		}
	}
	m.logger.Info().Int("count", len(m.personas)).Str("dir", m.dir).Msg("Personas saved")
	return nil
}

func clampTrust(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
