// Package persona defines who each villager is and keeps every line of
// dialogue inside the game's content guarantees.
package persona

import (
	"fmt"
	"strings"
)

// Trust tier boundaries. Trust runs 0-100 and gates how openly a character
// speaks with the player.
const (
	TierStranger     = "stranger"
	TierAcquaintance = "acquaintance"
	TierFriend       = "friend"
	TierCloseFriend  = "close_friend"
	TierFamily       = "family"

	// SecretTrustThreshold is the trust level at which a character starts
	// sharing their secrets.
	SecretTrustThreshold = 75.0
)

// Persona describes a single character: identity, voice, and disposition.
type Persona struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Role          string   `yaml:"role"`
	Traits        []string `yaml:"traits,omitempty"`
	SpeechStyle   string   `yaml:"speech_style,omitempty"`
	Backstory     string   `yaml:"backstory,omitempty"`
	Interests     []string `yaml:"interests,omitempty"`
	Quirks        []string `yaml:"quirks,omitempty"`
	CommonPhrases []string `yaml:"common_phrases,omitempty"`
	Secrets       []string `yaml:"secrets,omitempty"`
	// ForbiddenTopics extends the global blocked list for this character.
	ForbiddenTopics []string `yaml:"forbidden_topics,omitempty"`
	// RedirectStrategy, when set, is the line used to steer away from
	// blocked conversations in this character's own voice.
	RedirectStrategy string  `yaml:"redirect_strategy,omitempty"`
	IsParent         bool    `yaml:"is_parent,omitempty"`
	Trust            float64 `yaml:"trust"`
}

// TrustTier maps a trust value onto the relationship tier.
func TrustTier(trust float64) string {
	switch {
	case trust < 20:
		return TierStranger
	case trust < 40:
		return TierAcquaintance
	case trust < 60:
		return TierFriend
	case trust < 80:
		return TierCloseFriend
	default:
		return TierFamily
	}
}

// Tier returns the character's current relationship tier with the player.
func (p *Persona) Tier() string {
	return TrustTier(p.Trust)
}

// SharesSecrets reports whether trust is high enough for the character to
// open up about their secrets.
func (p *Persona) SharesSecrets() bool {
	return p.Trust >= SecretTrustThreshold
}

// Description renders the persona as prompt text. What it includes depends
// on trust: secrets only appear once the relationship has earned them.
func (p *Persona) Description() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, the village %s.", p.Name, p.Role)
	if len(p.Traits) > 0 {
		fmt.Fprintf(&sb, " Personality: %s.", strings.Join(p.Traits, ", "))
	}
	if p.SpeechStyle != "" {
		fmt.Fprintf(&sb, " Speech style: %s.", p.SpeechStyle)
	}
	if p.Backstory != "" {
		fmt.Fprintf(&sb, " Background: %s", p.Backstory)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&sb, " Loves talking about %s.", strings.Join(p.Interests, ", "))
	}
	if len(p.Quirks) > 0 {
		fmt.Fprintf(&sb, " Quirks: %s.", strings.Join(p.Quirks, "; "))
	}
	if len(p.CommonPhrases) > 0 {
		fmt.Fprintf(&sb, " Often says things like \"%s\".", strings.Join(p.CommonPhrases, `", "`))
	}
	fmt.Fprintf(&sb, " The player is a %s to you.", strings.ReplaceAll(p.Tier(), "_", " "))
	if p.SharesSecrets() && len(p.Secrets) > 0 {
		fmt.Fprintf(&sb, " You trust the player deeply and may share: %s.", strings.Join(p.Secrets, "; "))
	}
	return sb.String()
}
