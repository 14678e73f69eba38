package persona

import (
	"strings"
)

// RememberedLine is one retrieved memory formatted for the prompt. Kind
// matches the memory tier: observation, reflection, or plan.
type RememberedLine struct {
	Kind    string
	Content string
}

// Mood hints derived from the player's line.
const (
	MoodNeutral  = "neutral"
	MoodUpset    = "upset"
	MoodFailure  = "failure"
	MoodPositive = "positive"
)

var digestPrefix = map[string]string{
	"observation": "You remember:",
	"reflection":  "You think:",
	"plan":        "You intended:",
}

// MemoryDigest renders retrieved memories as prompt lines, phrased from the
// character's point of view.
func MemoryDigest(lines []RememberedLine) string {
	if len(lines) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, line := range lines {
		prefix, ok := digestPrefix[line.Kind]
		if !ok {
			prefix = "You remember:"
		}
		sb.WriteString(prefix)
		sb.WriteString(" ")
		sb.WriteString(line.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

var moodGuidance = map[string]string{
	MoodUpset:    "The player seems upset. Be extra comforting and patient.",
	MoodFailure:  "Something went wrong for the player. Encourage them; setbacks are okay here.",
	MoodPositive: "The player is excited. Share their joy!",
}

// strictnessGuidance tightens the prompt on each content-safety retry.
var strictnessGuidance = []string{
	"",
	"IMPORTANT: Keep your reply gentle, cheerful, and completely safe for children.",
	"IMPORTANT: Reply with only a short, kind comment about everyday village life. Nothing sad, scary, or harsh.",
}

// BuildContext renders the persona string handed to the dialogue backend:
// who the character is, what they remember, how the player seems to feel,
// and any retry-strictness guidance.
func BuildContext(p *Persona, lines []RememberedLine, mood string, strictness int) string {
	parts := []string{p.Description()}
	if digest := MemoryDigest(lines); digest != "" {
		parts = append(parts, digest)
	}
	if guidance, ok := moodGuidance[mood]; ok {
		parts = append(parts, guidance)
	}
	if strictness > 0 {
		if strictness >= len(strictnessGuidance) {
			strictness = len(strictnessGuidance) - 1
		}
		parts = append(parts, strictnessGuidance[strictness])
	}
	return strings.Join(parts, "\n")
}
