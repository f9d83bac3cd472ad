package distress

// Lexicons consulted by the engine. Order drives trigger order.
type Lexicons struct {
	// CrisisPhrases short-circuit to the severe tier on any substring hit.
	CrisisPhrases []string
	// SevereTerms count toward the high tier.
	SevereTerms []string
	// ModerateTerms count toward the moderate and low tiers.
	ModerateTerms []string
	// ChronicMarkers signal a persistent pattern rather than a passing state.
	ChronicMarkers []string
	// NegativeMoods are mood labels treated as negative.
	NegativeMoods []string
}

// DefaultLexicons returns the production lexicons.
func DefaultLexicons() Lexicons {
	return Lexicons{
		CrisisPhrases: []string{
			"kill myself", "killing myself", "end it all", "end my life", "want to die", "wanna die",
			"suicide", "suicidal", "self harm", "self-harm", "hurt myself", "cut myself",
			"better off dead", "no reason to live", "don't want to be here anymore", "take my own life",
		},
		SevereTerms: []string{
			"hopeless", "worthless", "can't go on", "give up", "trapped", "unbearable",
			"no way out", "a burden", "falling apart", "can't cope", "breaking down", "empty inside",
		},
		ModerateTerms: []string{
			"anxious", "stressed", "overwhelmed", "exhausted", "lonely", "sad", "crying",
			"panic", "can't sleep", "worried", "scared", "numb", "frustrated", "miserable",
		},
		ChronicMarkers: []string{
			"always", "constantly", "every day", "all the time", "never stops", "never ends", "forever", "nothing ever",
		},
		NegativeMoods: []string{
			"sad", "lonely", "hopeless", "anxious", "stressed", "overwhelmed", "scared", "angry",
			"frustrated", "irritated", "guilty", "ashamed", "tired", "numb",
		},
	}
}
