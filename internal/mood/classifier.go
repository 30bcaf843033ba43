package mood

import "strings"

// pattern matches either a single word (exact token match after folding) or
// a multi-word phrase (substring match on the folded text).
type pattern struct {
	label   Label
	words   []string
	phrases []string
}

// patterns are evaluated top to bottom; the first label with any hit wins.
// Distress moods come before happy so that mixed messages ("I was happy but
// now everything is falling apart") resolve toward the feeling that needs a
// response. The order is part of the contract, not incidental.
var patterns = []pattern{
	{
		label:   Sad,
		words:   []string{"sad", "unhappy", "depressed", "lonely", "alone", "hopeless", "heartbroken", "grieving", "crying", "miserable", "empty"},
		phrases: []string{"feel down", "feeling down", "lost someone", "miss him", "miss her", "miss them", "no one cares"},
	},
	{
		label:   Fear,
		words:   []string{"afraid", "scared", "anxious", "nervous", "terrified", "worried", "panicking", "dread"},
		phrases: []string{"panic attack", "can't stop worrying", "what if something happens"},
	},
	{
		label:   Angry,
		words:   []string{"angry", "furious", "frustrated", "annoyed", "irritated", "resentful", "outraged"},
		phrases: []string{"fed up", "so mad", "makes me mad", "sick of"},
	},
	{
		label:   Disgust,
		words:   []string{"disgusted", "disgusting", "gross", "revolting", "repulsed", "vile"},
		phrases: []string{"makes me sick"},
	},
	{
		label:   Surprise,
		words:   []string{"surprised", "shocked", "astonished", "stunned", "unexpected"},
		phrases: []string{"can't believe", "cannot believe", "out of nowhere", "never saw it coming"},
	},
	{
		label:   Happy,
		words:   []string{"happy", "joyful", "grateful", "thankful", "blessed", "excited", "wonderful", "delighted"},
		phrases: []string{"great day", "so good", "feeling great", "full of joy"},
	},
}

// Classify maps a chat message to exactly one Label. It is a pure function:
// lowercase the text, walk the pattern table in priority order, return the
// first label that matches. Text with no signal is Neutral. Classify never
// fails, whatever the input.
func Classify(text string) Label {
	folded := strings.ToLower(text)
	tokens := tokenize(folded)

	for _, p := range patterns {
		for _, w := range p.words {
			if _, ok := tokens[w]; ok {
				return p.label
			}
		}
		for _, ph := range p.phrases {
			if strings.Contains(folded, ph) {
				return p.label
			}
		}
	}
	return Neutral
}

// tokenize splits folded text into a word set, treating anything that is not
// a letter, digit, or apostrophe as a separator. Apostrophes stay so "can't"
// survives as one token.
func tokenize(folded string) map[string]struct{} {
	tokens := make(map[string]struct{})
	start := -1
	for i, r := range folded {
		isWord := r == '\'' || r == '’' ||
			(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
		if isWord {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens[folded[start:i]] = struct{}{}
			start = -1
		}
	}
	if start >= 0 {
		tokens[folded[start:]] = struct{}{}
	}
	return tokens
}
