package coherence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/briahnloo/source-of-truth/internal/model"
)

// negativeMarkers and positiveMarkers drive the cheap title sentiment
// heuristic. Counts are compared; ties read as neutral.
var negativeMarkers = map[string]bool{
	"attack": true, "attacks": true, "blast": true, "chaos": true,
	"collapse": true, "crackdown": true, "crash": true, "crisis": true,
	"dead": true, "deadly": true, "death": true, "deaths": true,
	"destroy": true, "destroyed": true, "disaster": true, "fail": true,
	"failed": true, "failure": true, "fear": true, "fears": true,
	"injured": true, "killed": true, "kills": true, "loss": true,
	"outrage": true, "panic": true, "riot": true, "riots": true,
	"scandal": true, "slam": true, "slams": true, "threat": true,
	"threatens": true, "toll": true, "violence": true, "violent": true,
	"war": true, "warning": true, "worst": true,
}

var positiveMarkers = map[string]bool{
	"agreement": true, "benefit": true, "best": true, "boost": true,
	"breakthrough": true, "celebrate": true, "celebrates": true,
	"gain": true, "gains": true, "growth": true, "hope": true,
	"improve": true, "improves": true, "peace": true, "progress": true,
	"record": true, "recover": true, "recovery": true, "relief": true,
	"rescue": true, "rescued": true, "soar": true, "soars": true,
	"success": true, "successful": true, "surge": true, "triumph": true,
	"win": true, "wins": true,
}

// normalizeEntity canonicalizes an entity string for set comparison.
func normalizeEntity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// memberGroup is an intermediate grouping of member indices.
type memberGroup struct {
	indices []int
	leaning model.Leaning // set only for political grouping
}

// explain builds the conflict explanation for a disagreeing cluster.
// Every sub-step degrades independently; the result may be partial but
// is never nil once severity registered a conflict.
func (e *Engine) explain(members []model.Article, embeddings [][]float32, entitySets []map[string]bool, score float64, diverse bool) *Explanation {
	var groups []memberGroup
	differenceType := "narrative"

	// Low coherence or genuine political diversity: the split that
	// matters is the political one. Otherwise let the embeddings find
	// the narrative sub-groups.
	if score < e.cfg.PoliticalGroupingCutoff || diverse {
		groups = e.groupByLeaning(members)
		differenceType = "political"
	} else {
		groups = groupByNarrative(members, embeddings)
	}

	if len(groups) < 2 {
		// A single perspective cannot explain a conflict; fall back to
		// political buckets, then give up on grouping but keep the rest.
		if differenceType != "political" {
			if pg := e.groupByLeaning(members); len(pg) >= 2 {
				groups = pg
				differenceType = "political"
			}
		}
	}

	perspectives := make([]Perspective, 0, len(groups))
	groupKeywords := make([]map[string]bool, 0, len(groups))
	groupEntities := make([]map[string]bool, 0, len(groups))
	groupTitles := make([][]string, 0, len(groups))

	for _, g := range groups {
		p, keywords, entities := buildPerspective(members, entitySets, g)
		perspectives = append(perspectives, p)
		groupKeywords = append(groupKeywords, keywords)
		groupEntities = append(groupEntities, entities)

		titles := make([]string, len(g.indices))
		for i, idx := range g.indices {
			titles[i] = members[idx].Title
		}
		groupTitles = append(groupTitles, titles)
	}

	discrepancies := detectNumericDiscrepancies(groupTitles, e.cfg.DiscrepancyRatio)
	classification := classifyConflict(perspectives, groupEntities, discrepancies)
	overlap := keywordOverlap(groupKeywords)

	return &Explanation{
		SchemaVersion:  ExplanationSchemaVersion,
		Perspectives:   perspectives,
		KeyDifference:  describeDifference(perspectives, classification),
		DifferenceType: differenceType,
		Discrepancies:  discrepancies,
		Classification: classification,
		KeywordOverlap: overlap,
	}
}

// groupByLeaning buckets members into left/center/right by whichever
// bias dimension scores highest for their source. Unknown sources
// default to center. Empty buckets are dropped.
func (e *Engine) groupByLeaning(members []model.Article) []memberGroup {
	buckets := map[model.Leaning][]int{}
	for i, m := range members {
		lean := e.bias.SourceBias(m.Source).Leaning()
		buckets[lean] = append(buckets[lean], i)
	}

	var groups []memberGroup
	for _, lean := range []model.Leaning{model.LeanLeft, model.LeanCenter, model.LeanRight} {
		if indices := buckets[lean]; len(indices) > 0 {
			groups = append(groups, memberGroup{indices: indices, leaning: lean})
		}
	}
	return groups
}

// groupByNarrative splits members into unsupervised narrative sub-groups
// using agglomerative clustering over their embeddings. Fewer than 3
// articles degenerate to singleton groups.
func groupByNarrative(members []model.Article, embeddings [][]float32) []memberGroup {
	n := len(members)
	if n < 3 {
		groups := make([]memberGroup, n)
		for i := range groups {
			groups[i] = memberGroup{indices: []int{i}}
		}
		return groups
	}

	target := n / 2
	if target < 2 {
		target = 2
	}
	if target > 3 {
		target = 3
	}

	assignment := agglomerate(embeddings, target)

	byLabel := map[int][]int{}
	for i, label := range assignment {
		byLabel[label] = append(byLabel[label], i)
	}

	labels := make([]int, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	groups := make([]memberGroup, 0, len(labels))
	for _, label := range labels {
		groups = append(groups, memberGroup{indices: byLabel[label]})
	}
	return groups
}

// buildPerspective derives the displayable summary for one group:
// sentiment, distinctive keywords, key entities, representative title.
func buildPerspective(members []model.Article, entitySets []map[string]bool, g memberGroup) (Perspective, map[string]bool, map[string]bool) {
	sourceSeen := map[string]bool{}
	var sources []string
	keywordFreq := map[string]int{}
	entityFreq := map[string]int{}
	var negCount, posCount int

	for _, idx := range g.indices {
		m := members[idx]
		if !sourceSeen[m.Source] {
			sourceSeen[m.Source] = true
			sources = append(sources, m.Source)
		}

		for _, tok := range tokenizeTitle(m.Title) {
			keywordFreq[tok]++
			if negativeMarkers[tok] {
				negCount++
			}
			if positiveMarkers[tok] {
				posCount++
			}
		}
		for ent := range entitySets[idx] {
			entityFreq[ent]++
		}
	}

	sentiment := SentimentNeutral
	if negCount > posCount {
		sentiment = SentimentNegative
	} else if posCount > negCount {
		sentiment = SentimentPositive
	}

	keywords := topByFrequency(keywordFreq, 5)
	entities := topByFrequency(entityFreq, 5)

	p := Perspective{
		Sources:             sources,
		ArticleCount:        len(g.indices),
		RepresentativeTitle: representativeTitle(members, g.indices, keywords),
		KeyEntities:         entities,
		Sentiment:           sentiment,
		FocusKeywords:       keywords,
		Leaning:             g.leaning,
	}

	entitySet := make(map[string]bool, len(entityFreq))
	for ent := range entityFreq {
		entitySet[ent] = true
	}
	return p, tokenSet(keywords), entitySet
}

// topByFrequency returns up to limit keys ordered by descending count,
// alphabetical within equal counts so output is deterministic.
func topByFrequency(freq map[string]int, limit int) []string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// representativeTitle picks the title scoring highest on keyword matches
// times two plus a length score, favoring descriptive non-trivial titles.
func representativeTitle(members []model.Article, indices []int, keywords []string) string {
	keywordSet := tokenSet(keywords)

	best := ""
	bestScore := -1.0
	for _, idx := range indices {
		title := members[idx].Title
		tokens := tokenizeTitle(title)

		matches := 0
		for _, tok := range tokens {
			if keywordSet[tok] {
				matches++
			}
		}

		lengthScore := float64(len(tokens)) / 10.0
		if lengthScore > 1.0 {
			lengthScore = 1.0
		}

		score := float64(matches)*2 + lengthScore
		if score > bestScore {
			bestScore = score
			best = title
		}
	}
	return best
}

// describeDifference produces the human-readable key-difference line.
func describeDifference(perspectives []Perspective, classification *Classification) string {
	if len(perspectives) < 2 {
		return "sources diverge within a single perspective"
	}

	if classification != nil {
		switch classification.Type {
		case ConflictNumerical:
			return "sources report materially different figures for the same event"
		case ConflictFacts:
			return "sources describe largely different facts and actors"
		case ConflictFraming:
			return fmt.Sprintf("sources split on emotional framing (%s vs %s)",
				perspectives[0].Sentiment, perspectives[1].Sentiment)
		}
	}
	return "sources agree on the facts but draw different conclusions"
}
