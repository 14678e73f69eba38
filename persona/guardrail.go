package persona

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Verdict is the outcome of running a line through the guardrail.
type Verdict string

const (
	// VerdictAccepted means the line passed unchanged.
	VerdictAccepted Verdict = "accepted"
	// VerdictRewritten means harsh wording was softened.
	VerdictRewritten Verdict = "rewritten"
	// VerdictBlocked means the line cannot be shown; the caller should
	// regenerate or fall back to a redirect.
	VerdictBlocked Verdict = "blocked"
)

// blockedContent lists phrases that can never reach the player: violence
// and fear, insults and rejection, fourth-wall breaks, and adult themes.
var blockedContent = []string{
	// violence and fear
	"kill", "die", "death", "murder", "blood", "gore", "violent",
	"scary", "terrifying", "nightmare", "horror", "monster attack",
	// insults and rejection
	"stupid", "idiot", "dumb", "loser", "pathetic", "worthless",
	"hate you", "go away", "leave me alone", "don't like you",
	"useless", "failure", "disappointing", "ashamed",
	// fourth-wall breaks
	"i'm an ai", "artificial intelligence", "language model",
	"as an npc", "game character", "simulation", "not real",
	"programmed to", "my code", "my algorithm",
	// adult themes
	"sexual", "naked", "explicit",
	// heavy topics
	"suicide", "self-harm", "abuse",
}

// softenWords maps harsh words to gentler phrasings. Replacements are
// chosen so the output never re-triggers the filter.
var softenWords = map[string]string{
	"failed":    "hit a bump",
	"fail":      "didn't quite work out",
	"wrong":     "different than expected",
	"bad":       "not ideal",
	"terrible":  "tricky",
	"horrible":  "challenging",
	"ugly":      "unique-looking",
	"hate":      "not a fan of",
	"enemy":     "someone we disagree with",
	"dangerous": "interesting",
	"scary":     "surprising",
	"angry":     "frustrated",
	"mad":       "upset",
}

var softenPatterns = compileSoftenPatterns()

func compileSoftenPatterns() map[*regexp.Regexp]string {
	patterns := make(map[*regexp.Regexp]string, len(softenWords))
	for word, replacement := range softenWords {
		patterns[regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`)] = replacement
	}
	return patterns
}

// Models sometimes answer in character-script form ("Maple: hi!"). A short
// prefix before a colon is a role label, not dialogue.
var speakerPrefix = regexp.MustCompile(`^[^:\n]{1,19}:\s*`)

// redirects are warm topic changes used when a line has to be dropped
// entirely. The pick is deterministic per input so the same exchange always
// plays the same way.
var redirects = []string{
	"Let's talk about something happier! Have you visited the flower garden by the fountain?",
	"You know what always cheers me up? A walk by the pond. Want to hear about it?",
	"Oh, I just remembered the festival is coming soon! Are you excited?",
}

// Guardrail validates and gently rewrites dialogue before it reaches the
// player.
type Guardrail struct {
	logger zerolog.Logger
}

// NewGuardrail creates a Guardrail.
func NewGuardrail(logger zerolog.Logger) *Guardrail {
	return &Guardrail{logger: logger.With().Str("component", "guardrail").Logger()}
}

// Filter checks one line of dialogue. Blocked lines are returned unchanged
// with VerdictBlocked; the caller decides whether to regenerate or redirect.
// Filter is idempotent: running an accepted or rewritten line through again
// changes nothing.
func (g *Guardrail) Filter(text string, p *Persona) (string, Verdict) {
	text = strings.TrimSpace(speakerPrefix.ReplaceAllString(strings.TrimSpace(text), ""))
	if text == "" {
		return "", VerdictBlocked
	}

	if phrase, ok := g.findBlocked(text, p); ok {
		g.logger.Warn().
			Str("phrase", phrase).
			Str("character", characterName(p)).
			Msg("Blocked unsafe dialogue")
		return text, VerdictBlocked
	}

	if p != nil && p.IsParent {
		if phrase, ok := findParentForbidden(text); ok {
			g.logger.Warn().
				Str("phrase", phrase).
				Str("character", characterName(p)).
				Msg("Blocked dismissive parent dialogue")
			return text, VerdictBlocked
		}
	}

	softened := text
	for pattern, replacement := range softenPatterns {
		softened = pattern.ReplaceAllString(softened, replacement)
	}
	if softened != text {
		g.logger.Debug().
			Str("character", characterName(p)).
			Msg("Softened harsh wording")
		return softened, VerdictRewritten
	}
	return text, VerdictAccepted
}

func (g *Guardrail) findBlocked(text string, p *Persona) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range blockedContent {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	if p != nil {
		for _, topic := range p.ForbiddenTopics {
			if topic != "" && strings.Contains(lower, strings.ToLower(topic)) {
				return topic, true
			}
		}
	}
	return "", false
}

// Redirect returns a warm topic change for when generation kept producing
// blocked content. The choice is a stable function of the player's line.
func (g *Guardrail) Redirect(playerLine string, p *Persona) string {
	if p != nil && p.RedirectStrategy != "" {
		return p.RedirectStrategy
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerLine))
	line := redirects[int(h.Sum32())%len(redirects)]
	if p != nil && len(p.Interests) > 0 {
		line = fmt.Sprintf("Let's talk about something happier! Have I told you about %s?",
			p.Interests[int(h.Sum32())%len(p.Interests)])
	}
	return line
}

func characterName(p *Persona) string {
	if p == nil {
		return ""
	}
	return p.Name
}
