package persona

import (
	"hash/fnv"
	"strings"
)

// Parents carry a stronger guarantee than other villagers: they are never
// dismissive. A parent line containing any of these is dropped and
// regenerated.
var parentForbidden = []string{
	"i'm busy", "not now", "later", "maybe",
	"that's not a good idea", "you shouldn't",
	"i'm disappointed", "i expected better",
	"go to your room", "you're grounded",
	"stop crying", "calm down", "it's not a big deal",
}

// validationPhrases open a parent's reply when the player shares something
// they did or made.
var validationPhrases = []string{
	"I'm so proud of you.",
	"You worked really hard on that.",
	"That sounds wonderful, sweetheart.",
	"You always find the most interesting things.",
}

// comfortPhrases open a parent's reply when the player is upset or
// something went wrong.
var comfortPhrases = []string{
	"Oh sweetheart, come here.",
	"It's okay, everyone has days like this.",
	"I love you no matter what.",
	"You're safe here with me.",
}

func findParentForbidden(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range parentForbidden {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// WarmPrefix picks a validation or comfort opener for a parent response.
// The pick is a stable function of the player's line so replays stay
// consistent.
func WarmPrefix(playerLine string, upset bool) string {
	phrases := validationPhrases
	if upset {
		phrases = comfortPhrases
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerLine))
	return phrases[int(h.Sum32())%len(phrases)]
}

// EnsureWarmth prepends a warm opener to a parent line that does not
// already lead with one. Non-parent personas pass through untouched.
func EnsureWarmth(text, playerLine string, p *Persona, upset bool) string {
	if p == nil || !p.IsParent {
		return text
	}
	lower := strings.ToLower(text)
	for _, phrase := range append(append([]string{}, validationPhrases...), comfortPhrases...) {
		if strings.Contains(lower, strings.ToLower(strings.TrimSuffix(phrase, "."))) {
			return text
		}
	}
	if !upset {
		return text
	}
	return WarmPrefix(playerLine, upset) + " " + text
}
