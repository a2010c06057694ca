package coherence

// classifyConflict assigns the single best conflict type, checked in
// order of evidentiary strength: hard numbers beat entity divergence,
// which beats sentiment, which beats the interpretation residual.
func classifyConflict(perspectives []Perspective, groupEntities []map[string]bool, discrepancies []NumericDiscrepancy) *Classification {
	for _, d := range discrepancies {
		if d.Significance == "high" {
			return &Classification{Type: ConflictNumerical, Confidence: 0.9}
		}
	}

	if crossGroupEntityOverlap(groupEntities) < 0.3 {
		return &Classification{Type: ConflictFacts, Confidence: 0.7}
	}

	if sentimentDisagreement(perspectives) {
		return &Classification{Type: ConflictFraming, Confidence: 0.6}
	}

	return &Classification{Type: ConflictInterpretation, Confidence: 0.5}
}

// crossGroupEntityOverlap computes intersection-over-union of entity
// sets across all groups: how much the groups talk about the same things.
func crossGroupEntityOverlap(groupEntities []map[string]bool) float64 {
	nonEmpty := 0
	for _, s := range groupEntities {
		if len(s) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		// Not enough entity evidence to call the facts different.
		return 1.0
	}

	union := map[string]bool{}
	counts := map[string]int{}
	for _, s := range groupEntities {
		for ent := range s {
			union[ent] = true
			counts[ent]++
		}
	}

	intersection := 0
	for _, c := range counts {
		if c == len(groupEntities) {
			intersection++
		}
	}
	return float64(intersection) / float64(len(union))
}

// sentimentDisagreement reports whether any two perspectives carry
// different sentiment labels.
func sentimentDisagreement(perspectives []Perspective) bool {
	for i := 1; i < len(perspectives); i++ {
		if perspectives[i].Sentiment != perspectives[0].Sentiment {
			return true
		}
	}
	return false
}

// keywordOverlap summarizes how much the perspective groups use the
// same vocabulary: high overlap means the same story told differently,
// low overlap means genuinely different angles.
func keywordOverlap(groupKeywords []map[string]bool) float64 {
	n := len(groupKeywords)
	if n <= 1 {
		return 1.0
	}

	var sum float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += jaccard(groupKeywords[i], groupKeywords[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
