package coherence

import "strings"

// stopWords is the fixed English stop-word list used for title
// tokenization and keyword extraction.
var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "against": true, "all": true,
	"also": true, "amid": true, "an": true, "and": true, "are": true,
	"as": true, "at": true, "be": true, "been": true, "before": true,
	"but": true, "by": true, "can": true, "could": true, "did": true,
	"do": true, "does": true, "down": true, "for": true, "from": true,
	"had": true, "has": true, "have": true, "he": true, "her": true,
	"his": true, "how": true, "if": true, "in": true, "into": true,
	"is": true, "it": true, "its": true, "just": true, "may": true,
	"more": true, "most": true, "new": true, "no": true, "not": true,
	"now": true, "of": true, "off": true, "on": true, "or": true,
	"out": true, "over": true, "says": true, "said": true, "she": true,
	"should": true, "so": true, "some": true, "than": true, "that": true,
	"the": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "to": true, "under": true,
	"up": true, "was": true, "we": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "will": true,
	"with": true, "would": true, "you": true, "your": true,
}

// tokenizeTitle lowercases a title, strips punctuation, and drops stop
// words. Returns the surviving tokens in order.
func tokenizeTitle(title string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ' ' {
			return r
		}
		return ' '
	}, strings.ToLower(title))

	var tokens []string
	for _, w := range strings.Fields(cleaned) {
		if stopWords[w] || len(w) < 2 {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// tokenSet converts tokens to a membership set.
func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// jaccard computes intersection-over-union of two string sets.
// Both empty is full agreement; exactly one empty is full disagreement.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
