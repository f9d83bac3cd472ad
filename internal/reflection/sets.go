package reflection

// SetName identifies one of the fixed transformation sets.
type SetName string

const (
	SetAnxiety SetName = "anxiety"
	SetSadness SetName = "sadness"
	SetAnger   SetName = "anger"
	SetGuilt   SetName = "guilt"
	SetGeneral SetName = "general"
)

// TransformationSet supplies parallel content pools for each of the four steps.
type TransformationSet struct {
	Name         SetName
	TriggerWords []string
	Beliefs      []string
	Validations  []string
	Reframes     []string
	Actions      []string
}

// DefaultSets lists the sets in matching order. The general set has no trigger words and
// must stay last.
var DefaultSets = []TransformationSet{
	{
		Name:         SetAnxiety,
		TriggerWords: []string{"anx", "worr", "nerv", "stress", "overwhelm", "scared", "afraid", "panic", "fear"},
		Beliefs: []string{
			"Something will go wrong and I won't be able to handle it.",
			"If I stop worrying, I'll miss something important.",
			"I have to get everything right or it will fall apart.",
			"Everyone will notice I'm struggling.",
		},
		Validations: []string{
			"Worry is your mind trying to protect you. It makes sense that it's working overtime.",
			"Feeling on edge when a lot is uncertain is a very human response.",
			"It's exhausting to carry this much alertness. Your body is doing its best.",
		},
		Reframes: []string{
			"I've handled hard moments before, even when I doubted I could.",
			"I can prepare for what's in my control and let the rest unfold.",
			"A feeling of danger is not the same as actual danger.",
			"I don't need to solve everything today, only the next small piece.",
		},
		Actions: []string{
			"Take five slow breaths, making each exhale longer than the inhale.",
			"Write down the one worry that feels loudest and one thing you can do about it.",
			"Name five things you can see and four you can hear right now.",
			"Step outside for a two-minute walk before your next task.",
		},
	},
	{
		Name:         SetSadness,
		TriggerWords: []string{"sad", "lonel", "hopeless", "down", "numb", "empty", "depress", "grief", "tired"},
		Beliefs: []string{
			"Things are never going to get better.",
			"Nobody really understands or cares how I feel.",
			"I should be over this by now.",
			"I'm too much for the people around me.",
		},
		Validations: []string{
			"Sadness often shows up where something mattered to you. It deserves room.",
			"It's okay to feel low. You don't have to force yourself to be fine.",
			"Heavy days are real, and naming them is an act of care.",
		},
		Reframes: []string{
			"Feelings move like weather. This one is strong, and it can still pass.",
			"Reaching out isn't a burden. Most people are glad to be trusted.",
			"Healing isn't linear, and a slow day doesn't erase progress.",
			"I can be gentle with myself the way I would be with a friend.",
		},
		Actions: []string{
			"Send a short message to someone you trust, even just to say hello.",
			"Open a window or step into daylight for a few minutes.",
			"Drink a glass of water and eat something nourishing.",
			"Write down one small thing that brought even a little comfort this week.",
		},
	},
	{
		Name:         SetAnger,
		TriggerWords: []string{"ang", "mad", "furious", "frustrat", "irritat", "annoy", "rage", "resent"},
		Beliefs: []string{
			"They did that on purpose to disrespect me.",
			"It's not fair, and nothing will ever change.",
			"I have to react right now or I'll lose.",
			"If I let this go, I'm letting them win.",
		},
		Validations: []string{
			"Anger often points at a boundary or value that feels crossed.",
			"It makes sense to feel heated when something feels unfair.",
			"Your frustration is information, not a flaw.",
		},
		Reframes: []string{
			"I can take my anger seriously without letting it choose my next move.",
			"There may be pieces of the story I can't see yet.",
			"Responding later can be more powerful than reacting now.",
			"I can name what I need instead of what I'm against.",
		},
		Actions: []string{
			"Pause for ten slow breaths before replying to anyone.",
			"Write the unsent message, then write what you actually need.",
			"Move your body for five minutes: stairs, a brisk walk, or stretching.",
			"Identify the boundary that felt crossed and one way to state it calmly.",
		},
	},
	{
		Name:         SetGuilt,
		TriggerWords: []string{"guilt", "asham", "shame", "regret", "sorry", "fault", "embarrass"},
		Beliefs: []string{
			"I'm a bad person because of what I did.",
			"I should have known better.",
			"I don't deserve to feel okay after this.",
			"People will never see me the same way.",
		},
		Validations: []string{
			"Guilt shows that you care about doing right by others.",
			"Everyone makes mistakes. Feeling this means your values are intact.",
			"It takes courage to look honestly at something you regret.",
		},
		Reframes: []string{
			"I made a mistake; that is different from being a mistake.",
			"I'm judging my past self with information I only have now.",
			"Repair is possible, and it starts with a small step.",
			"I can hold myself accountable and still treat myself kindly.",
		},
		Actions: []string{
			"Write down one concrete step you could take to make amends.",
			"Say to yourself what you'd say to a friend in the same situation.",
			"Note one thing you learned that you'll carry forward.",
			"If appropriate, draft a short, sincere apology.",
		},
	},
	{
		Name: SetGeneral,
		Beliefs: []string{
			"I should be handling things better than I am.",
			"My feelings don't really matter.",
			"I need to figure everything out on my own.",
		},
		Validations: []string{
			"Whatever you're feeling right now is allowed.",
			"Taking time to reflect is a meaningful act of self-care.",
			"You showed up for yourself today by writing this.",
		},
		Reframes: []string{
			"I'm doing the best I can with what I have right now.",
			"My feelings are worth noticing, even the quiet ones.",
			"Asking for help is a strength, not a weakness.",
		},
		Actions: []string{
			"Pick one small, kind thing to do for yourself in the next hour.",
			"Write three things that went okay today, however small.",
			"Take a few minutes to stretch and check in with your body.",
		},
	},
}
