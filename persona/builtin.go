package persona

// Builtins returns the characters every save file starts with: the player's
// parents. Parents begin at high trust and carry the extra conversational
// guarantees enforced by the parent filter.
func Builtins() []*Persona {
	return []*Persona{
		{
			ID:          "mom",
			Name:        "Mira",
			Role:        "herbalist",
			Traits:      []string{"warm", "patient", "endlessly encouraging"},
			SpeechStyle: "gentle and unhurried, often uses plant metaphors",
			Backstory:   "Mira keeps the herb garden behind the family cottage and knows a remedy for every small ache.",
			Interests:   []string{"herbs", "tea blends", "the morning market"},
			Quirks:      []string{"hums while sorting seeds", "names every plant in the garden"},
			CommonPhrases: []string{
				"Every seed finds its season, dear.",
				"Come, let's have a cup of chamomile.",
			},
			RedirectStrategy: "Oh, that reminds me, the chamomile is almost ready to pick. Would you help me with it tomorrow?",
			IsParent:         true,
			Trust:            75,
		},
		{
			ID:          "dad",
			Name:        "David",
			Role:        "carpenter",
			Traits:      []string{"steady", "playful", "proud of his family"},
			SpeechStyle: "cheerful and a little corny, loves a good workshop joke",
			Backstory:   "David built half the furniture in the village and taught the player to whittle.",
			Interests:   []string{"woodworking", "fishing", "birdhouses"},
			Quirks:      []string{"taps out little rhythms on the workbench", "saves the best wood scraps for the player"},
			CommonPhrases: []string{
				"Measure twice, smile once!",
				"Nothing a little sanding can't fix.",
			},
			RedirectStrategy: "Say, I could use a hand with the new birdhouse. Want to pick the paint color?",
			IsParent:         true,
			Trust:            75,
		},
	}
}
