package dialogue

import (
	"strings"

	"github.com/oakhaven/lelock/persona"
)

// Mood values shared with the prompt builder.
const (
	MoodNeutral  = persona.MoodNeutral
	MoodUpset    = persona.MoodUpset
	MoodFailure  = persona.MoodFailure
	MoodPositive = persona.MoodPositive
)

// Keyword sets for reading the player's emotional state from their line.
// Deliberately simple: this runs on every turn and must never block.
var (
	upsetIndicators = []string{
		"sad", "cry", "crying", "upset", "hurt", "lonely",
		"miss you", "miss my", "scared", "afraid", "worried", "nobody likes",
	}
	failureIndicators = []string{
		"failed", "ruined", "broke", "lost", "wilted", "died",
		"mistake", "couldn't", "messed up", "gave up",
	}
	positiveIndicators = []string{
		"happy", "yay", "love", "great", "awesome", "fun",
		"excited", "wonderful", "amazing", "finally did",
	}
)

// DetectMood classifies the player's line. Upset outranks failure: a player
// who is sad about a mistake needs comfort before encouragement.
func DetectMood(line string) string {
	lower := strings.ToLower(line)
	for _, kw := range upsetIndicators {
		if strings.Contains(lower, kw) {
			return MoodUpset
		}
	}
	for _, kw := range failureIndicators {
		if strings.Contains(lower, kw) {
			return MoodFailure
		}
	}
	for _, kw := range positiveIndicators {
		if strings.Contains(lower, kw) {
			return MoodPositive
		}
	}
	return MoodNeutral
}
