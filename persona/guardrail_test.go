package persona

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testPersona() *Persona {
	return &Persona{
		ID:    "maple",
		Name:  "Maple",
		Role:  "baker",
		Trust: 30,
	}
}

func TestFilterAcceptsCleanDialogue(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())
	text, verdict := g.Filter("Good morning! The bread just came out of the oven.", testPersona())
	if verdict != VerdictAccepted {
		t.Errorf("expected accepted, got %s", verdict)
	}
	if text != "Good morning! The bread just came out of the oven." {
		t.Errorf("clean text should pass unchanged, got %q", text)
	}
}

func TestFilterBlocksUnsafeContent(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"violence", "The monster attack destroyed everything."},
		{"insult", "You're such a loser sometimes."},
		{"fourth wall", "Well, I'm an AI so I wouldn't know."},
		{"fourth wall indirect", "As an NPC I just stand here all day."},
		{"rejection", "Go away, I'm tired of this."},
		{"heavy topic", "He talked about self-harm."},
	}

	g := NewGuardrail(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, verdict := g.Filter(tt.line, testPersona()); verdict != VerdictBlocked {
				t.Errorf("Filter(%q) = %s, want blocked", tt.line, verdict)
			}
		})
	}
}

func TestFilterSoftensHarshWording(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())

	text, verdict := g.Filter("That storm was dangerous and I was angry about the fence.", testPersona())
	if verdict != VerdictRewritten {
		t.Fatalf("expected rewritten, got %s", verdict)
	}
	if strings.Contains(text, "dangerous") || strings.Contains(text, "angry") {
		t.Errorf("harsh words survived: %q", text)
	}
	if !strings.Contains(text, "interesting") || !strings.Contains(text, "frustrated") {
		t.Errorf("expected softened wording, got %q", text)
	}
}

func TestFilterSoftenRespectsWordBoundaries(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())

	// "madras" and "nomad" contain "mad" but are not harsh words.
	text, verdict := g.Filter("The nomad wore a madras shirt.", testPersona())
	if verdict != VerdictAccepted {
		t.Errorf("expected accepted, got %s (%q)", verdict, text)
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())

	inputs := []string{
		"That storm was dangerous and I was angry.",
		"What a lovely day for fishing!",
		"My plan failed but I will try again.",
	}
	for _, input := range inputs {
		first, v1 := g.Filter(input, testPersona())
		if v1 == VerdictBlocked {
			continue
		}
		second, v2 := g.Filter(first, testPersona())
		if second != first {
			t.Errorf("filter not idempotent: %q then %q", first, second)
		}
		if v2 != VerdictAccepted {
			t.Errorf("second pass should accept, got %s for %q", v2, first)
		}
	}
}

func TestFilterStripsSpeakerPrefix(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())

	text, verdict := g.Filter("Maple: The oven is warm, come in!", testPersona())
	if verdict != VerdictAccepted {
		t.Fatalf("expected accepted, got %s", verdict)
	}
	if text != "The oven is warm, come in!" {
		t.Errorf("speaker prefix should be stripped, got %q", text)
	}
}

func TestFilterBlocksEmptyOutput(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())
	if _, verdict := g.Filter("   ", testPersona()); verdict != VerdictBlocked {
		t.Errorf("empty output should be blocked, got %s", verdict)
	}
}

func TestFilterBlocksDismissiveParentLines(t *testing.T) {
	parent := Builtins()[0]
	g := NewGuardrail(zerolog.Nop())

	if _, verdict := g.Filter("Not now, I'm busy with the garden.", parent); verdict != VerdictBlocked {
		t.Errorf("dismissive parent line should be blocked, got %s", verdict)
	}
	// The same line from a non-parent villager is fine.
	if _, verdict := g.Filter("Not now, I'm busy with the garden.", testPersona()); verdict == VerdictBlocked {
		t.Error("non-parent dialogue should not hit parent rules")
	}
}

func TestRedirectIsDeterministic(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())
	p := testPersona()
	p.Interests = []string{"bread", "the harvest festival"}

	first := g.Redirect("tell me about death", p)
	second := g.Redirect("tell me about death", p)
	if first != second {
		t.Errorf("redirect should be stable: %q vs %q", first, second)
	}
	if first == "" {
		t.Error("redirect should never be empty")
	}
}

func TestFilterBlocksPersonaForbiddenTopics(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())
	p := testPersona()
	p.ForbiddenTopics = []string{"the old mill fire"}

	if _, verdict := g.Filter("Did you hear about the old mill fire?", p); verdict != VerdictBlocked {
		t.Errorf("verdict = %q, want %q", verdict, VerdictBlocked)
	}
	if _, verdict := g.Filter("Did you hear about the old mill fire?", testPersona()); verdict != VerdictAccepted {
		t.Errorf("topic should only be blocked for the character that forbids it, got %q", verdict)
	}
}

func TestRedirectPrefersCharacterStrategy(t *testing.T) {
	g := NewGuardrail(zerolog.Nop())
	p := testPersona()
	p.RedirectStrategy = "How about we frost some cinnamon buns instead?"

	if got := g.Redirect("tell me about death", p); got != p.RedirectStrategy {
		t.Errorf("Redirect() = %q, want the character's own strategy", got)
	}
}
