package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Meta-commentary the model might add: [thinking], [action], etc.
	bracketedAsides = regexp.MustCompile(`\[.*?\]`)
	// Role-label prefixes: "Response:", "Answer:", "Reply:".
	rolePrefix    = regexp.MustCompile(`(?i)^(Response|Answer|Reply):?\s*`)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
)

const maxResponseChars = 300

// CleanResponse tidies raw model output for in-game presentation. The text
// stays entirely model-generated; this only strips meta-commentary and role
// prefixes, then caps length at roughly three sentences and 300 characters
// so dialogue stays game-paced.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	text = bracketedAsides.ReplaceAllString(text, "")
	text = rolePrefix.ReplaceAllString(text, "")

	sentences := sentenceSplit.Split(text, -1)
	if len(sentences) > 4 {
		kept := make([]string, 0, 3)
		for _, s := range sentences[:3] {
			kept = append(kept, strings.TrimSpace(s))
		}
		text = strings.Join(kept, ". ") + "."
	}

	if len(text) > maxResponseChars {
		cut := maxResponseChars - 3
		// Back up to a rune boundary so the cap never splits a multi-byte
		// character.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}

	return strings.TrimSpace(text)
}
