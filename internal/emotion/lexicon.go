package emotion

// Category binds a mood label to the keywords that vote for it.
type Category struct {
	Label    Label
	Keywords []string
}

// DefaultLexicon lists the mood labels in tie-break order.
var DefaultLexicon = []Category{
	{Label: "happy", Keywords: []string{"happy", "glad", "cheerful", "good day", "great day", "smiling", "smile", "delighted"}},
	{Label: "joyful", Keywords: []string{"joy", "joyful", "elated", "ecstatic", "thrilled", "overjoyed", "wonderful"}},
	{Label: "grateful", Keywords: []string{"grateful", "thankful", "thank", "blessed", "appreciate", "appreciative", "gratitude"}},
	{Label: "calm", Keywords: []string{"calm", "peaceful", "relaxed", "serene", "at ease", "tranquil", "still"}},
	{Label: "content", Keywords: []string{"content", "satisfied", "fine", "okay", "comfortable", "settled"}},
	{Label: "excited", Keywords: []string{"excited", "can't wait", "pumped", "eager", "looking forward", "thrilled"}},
	{Label: "hopeful", Keywords: []string{"hopeful", "hope", "optimistic", "better tomorrow", "looking up", "promising"}},
	{Label: "proud", Keywords: []string{"proud", "accomplished", "achieved", "nailed it", "did it", "succeeded"}},
	{Label: "loved", Keywords: []string{"loved", "love", "cared for", "supported", "hugged", "appreciated"}},
	{Label: "energized", Keywords: []string{"energized", "energetic", "motivated", "productive", "alive", "refreshed"}},
	{Label: "sad", Keywords: []string{"sad", "unhappy", "down", "crying", "cried", "tears", "heartbroken", "blue"}},
	{Label: "lonely", Keywords: []string{"lonely", "alone", "isolated", "left out", "no one", "nobody", "by myself"}},
	{Label: "hopeless", Keywords: []string{"hopeless", "no hope", "pointless", "give up", "no point", "can't go on", "worthless"}},
	{Label: "anxious", Keywords: []string{"anxious", "anxiety", "nervous", "worried", "worry", "panic", "uneasy", "on edge"}},
	{Label: "stressed", Keywords: []string{"stressed", "stress", "pressure", "deadline", "tense", "too much"}},
	{Label: "overwhelmed", Keywords: []string{"overwhelmed", "drowning", "swamped", "can't cope", "too much", "buried"}},
	{Label: "scared", Keywords: []string{"scared", "afraid", "fear", "terrified", "frightened", "dread"}},
	{Label: "angry", Keywords: []string{"angry", "mad", "furious", "rage", "pissed", "livid", "hate"}},
	{Label: "frustrated", Keywords: []string{"frustrated", "frustrating", "stuck", "fed up", "annoying", "nothing works"}},
	{Label: "irritated", Keywords: []string{"irritated", "annoyed", "bothered", "agitated", "grumpy", "on my nerves"}},
	{Label: "guilty", Keywords: []string{"guilty", "guilt", "my fault", "regret", "should have", "sorry"}},
	{Label: "ashamed", Keywords: []string{"ashamed", "shame", "embarrassed", "humiliated", "disgusted with myself"}},
	{Label: "tired", Keywords: []string{"tired", "exhausted", "drained", "sleepy", "worn out", "burnt out", "burned out", "fatigued"}},
	{Label: "confused", Keywords: []string{"confused", "lost", "unsure", "don't know", "uncertain", "mixed up"}},
	{Label: "numb", Keywords: []string{"numb", "empty", "nothing matters", "disconnected", "feel nothing", "detached"}},
}
