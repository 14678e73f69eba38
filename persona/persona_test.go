package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestTrustTiers(t *testing.T) {
	tests := []struct {
		trust float64
		tier  string
	}{
		{0, TierStranger},
		{19.9, TierStranger},
		{20, TierAcquaintance},
		{39.9, TierAcquaintance},
		{40, TierFriend},
		{60, TierCloseFriend},
		{80, TierFamily},
		{100, TierFamily},
	}
	for _, tt := range tests {
		if got := TrustTier(tt.trust); got != tt.tier {
			t.Errorf("TrustTier(%.1f) = %s, want %s", tt.trust, got, tt.tier)
		}
	}
}

func TestDescriptionHidesSecretsAtLowTrust(t *testing.T) {
	p := &Persona{
		ID:      "maple",
		Name:    "Maple",
		Role:    "baker",
		Secrets: []string{"dreams of opening a bakery in the city"},
		Trust:   30,
	}
	if strings.Contains(p.Description(), "bakery in the city") {
		t.Error("secrets should be hidden below the trust threshold")
	}

	p.Trust = 80
	if !strings.Contains(p.Description(), "bakery in the city") {
		t.Error("secrets should appear at high trust")
	}
}

func TestManagerSeedsParents(t *testing.T) {
	m, err := NewManager("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	mom, err := m.Get("mom")
	if err != nil {
		t.Fatalf("Get(mom): %v", err)
	}
	if mom.Name != "Mira" || !mom.IsParent || mom.Trust != 75 {
		t.Errorf("unexpected mom persona: %+v", mom)
	}
	dad, err := m.Get("dad")
	if err != nil {
		t.Fatalf("Get(dad): %v", err)
	}
	if dad.Name != "David" || !dad.IsParent {
		t.Errorf("unexpected dad persona: %+v", dad)
	}
}

func TestManagerLoadsYAMLDir(t *testing.T) {
	dir := t.TempDir()
	data := `
name: Maple
role: baker
traits: [cheerful, generous]
interests: [bread, festivals]
trust: 35
`
	if err := os.WriteFile(filepath.Join(dir, "maple.yaml"), []byte(data), 0o644); err != nil {
		t.Fatalf("write persona file: %v", err)
	}

	m, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	p, err := m.Get("maple")
	if err != nil {
		t.Fatalf("Get(maple): %v", err)
	}
	if p.Name != "Maple" || p.Trust != 35 {
		t.Errorf("unexpected persona: %+v", p)
	}
	if p.Tier() != TierAcquaintance {
		t.Errorf("expected acquaintance tier, got %s", p.Tier())
	}
}

func TestSavePersistsTrustAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.AdjustTrust("mom", 10); err != nil {
		t.Fatalf("AdjustTrust: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewManager(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager reload: %v", err)
	}
	p, err := reloaded.Get("mom")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Trust != 85 {
		t.Errorf("trust should survive a save/load cycle, got %f", p.Trust)
	}
}

func TestAdjustTrustClamps(t *testing.T) {
	m, err := NewManager("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	trust, err := m.AdjustTrust("mom", 1000)
	if err != nil {
		t.Fatalf("AdjustTrust: %v", err)
	}
	if trust != 100 {
		t.Errorf("trust should clamp at 100, got %f", trust)
	}

	trust, err = m.AdjustTrust("mom", -1000)
	if err != nil {
		t.Fatalf("AdjustTrust: %v", err)
	}
	if trust != 0 {
		t.Errorf("trust should clamp at 0, got %f", trust)
	}

	if _, err := m.AdjustTrust("ghost", 1); err == nil {
		t.Error("expected error for unknown persona")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m, err := NewManager("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	p, _ := m.Get("mom")
	p.Trust = 1

	again, _ := m.Get("mom")
	if again.Trust != 75 {
		t.Errorf("mutating a returned persona should not affect the manager, got %f", again.Trust)
	}
}

func TestMemoryDigest(t *testing.T) {
	digest := MemoryDigest([]RememberedLine{
		{Kind: "observation", Content: "The player gave me a sunflower."},
		{Kind: "reflection", Content: "The player is thoughtful."},
		{Kind: "plan", Content: "I promised Robin that I would: bake a cake."},
	})

	for _, want := range []string{
		"You remember: The player gave me a sunflower.",
		"You think: The player is thoughtful.",
		"You intended: I promised Robin that I would: bake a cake.",
	} {
		if !strings.Contains(digest, want) {
			t.Errorf("digest missing %q:\n%s", want, digest)
		}
	}
}

func TestBuildContextLayers(t *testing.T) {
	p := &Persona{ID: "maple", Name: "Maple", Role: "baker", Trust: 50}

	ctx := BuildContext(p, []RememberedLine{{Kind: "observation", Content: "We talked yesterday."}}, MoodUpset, 1)
	for _, want := range []string{
		"Maple, the village baker",
		"You remember: We talked yesterday.",
		"extra comforting",
		"safe for children",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}

	plain := BuildContext(p, nil, MoodNeutral, 0)
	if strings.Contains(plain, "IMPORTANT") || strings.Contains(plain, "You remember") {
		t.Errorf("neutral context should carry no extra guidance:\n%s", plain)
	}
}
