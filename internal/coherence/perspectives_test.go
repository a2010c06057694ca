package coherence

import (
	"reflect"
	"testing"

	"github.com/briahnloo/source-of-truth/internal/model"
)

func TestBuildPerspectiveSentiment(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		want   Sentiment
	}{
		{"negative markers", []string{"Deadly crash kills dozens", "Violence erupts at rally"}, SentimentNegative},
		{"positive markers", []string{"Breakthrough brings hope", "Economy soars to record growth"}, SentimentPositive},
		{"no markers", []string{"Committee schedules hearing", "Council reviews budget"}, SentimentNeutral},
		{"balanced markers", []string{"Recovery stalls amid fears"}, SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members := make([]model.Article, len(tt.titles))
			sets := make([]map[string]bool, len(tt.titles))
			indices := make([]int, len(tt.titles))
			for i, title := range tt.titles {
				members[i] = model.Article{ID: "a", Source: "s.com", Title: title}
				sets[i] = map[string]bool{}
				indices[i] = i
			}

			p, _, _ := buildPerspective(members, sets, memberGroup{indices: indices})
			if p.Sentiment != tt.want {
				t.Errorf("Sentiment = %v, want %v", p.Sentiment, tt.want)
			}
		})
	}
}

func TestBuildPerspectiveTopKeywordsAndSources(t *testing.T) {
	members := []model.Article{
		{ID: "a1", Source: "one.com", Title: "Budget vote delayed over spending dispute"},
		{ID: "a2", Source: "two.com", Title: "Spending dispute stalls budget vote again"},
		{ID: "a3", Source: "one.com", Title: "Budget talks resume after dispute"},
	}
	sets := []map[string]bool{
		{"treasury": true},
		{"treasury": true, "senate": true},
		{"senate": true},
	}

	p, keywords, entities := buildPerspective(members, sets, memberGroup{indices: []int{0, 1, 2}})

	if p.ArticleCount != 3 {
		t.Errorf("ArticleCount = %d, want 3", p.ArticleCount)
	}
	if !reflect.DeepEqual(p.Sources, []string{"one.com", "two.com"}) {
		t.Errorf("Sources = %v, want deduplicated in first-seen order", p.Sources)
	}
	if len(p.FocusKeywords) == 0 || p.FocusKeywords[0] != "budget" && p.FocusKeywords[0] != "dispute" {
		t.Errorf("FocusKeywords = %v, want the most frequent token first", p.FocusKeywords)
	}
	if len(p.FocusKeywords) > 5 {
		t.Errorf("FocusKeywords = %v, want at most 5", p.FocusKeywords)
	}
	if !keywords["budget"] || !entities["treasury"] {
		t.Error("returned keyword/entity sets must cover the group's tokens")
	}
	if p.RepresentativeTitle == "" {
		t.Error("RepresentativeTitle must be set for a non-empty group")
	}
}

func TestTopByFrequencyDeterministicTies(t *testing.T) {
	freq := map[string]int{"delta": 2, "alpha": 2, "echo": 5, "bravo": 1}
	got := topByFrequency(freq, 3)
	want := []string{"echo", "alpha", "delta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("topByFrequency() = %v, want %v", got, want)
	}
}

func TestRepresentativeTitlePrefersKeywordRich(t *testing.T) {
	members := []model.Article{
		{Title: "Brief note"},
		{Title: "Budget dispute delays spending vote in marathon session"},
	}
	got := representativeTitle(members, []int{0, 1}, []string{"budget", "dispute", "vote"})
	if got != members[1].Title {
		t.Errorf("representativeTitle() = %q, want the keyword-rich title", got)
	}
}

func TestGroupByNarrativeSingletonsBelowThree(t *testing.T) {
	members := []model.Article{{Title: "a"}, {Title: "b"}}
	embeddings := [][]float32{{1, 0}, {0, 1}}

	groups := groupByNarrative(members, embeddings)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want one singleton per member", len(groups))
	}
	for i, g := range groups {
		if len(g.indices) != 1 {
			t.Errorf("group %d has %d members, want 1", i, len(g.indices))
		}
	}
}

func TestAgglomerateSeparatesOrthogonalGroups(t *testing.T) {
	embeddings := [][]float32{
		{1, 0, 0}, {0.9, 0.1, 0},
		{0, 0, 1}, {0, 0.1, 0.9},
	}

	labels := agglomerate(embeddings, 2)
	if labels[0] != labels[1] {
		t.Errorf("labels = %v, first pair should share a group", labels)
	}
	if labels[2] != labels[3] {
		t.Errorf("labels = %v, second pair should share a group", labels)
	}
	if labels[0] == labels[2] {
		t.Errorf("labels = %v, orthogonal pairs should not merge", labels)
	}
}

func TestAgglomerateNoMergeNeeded(t *testing.T) {
	embeddings := [][]float32{{1, 0}, {0, 1}}
	labels := agglomerate(embeddings, 3)
	if labels[0] == labels[1] {
		t.Errorf("labels = %v, want untouched singletons", labels)
	}
}

func TestClassifyConflictPrecedence(t *testing.T) {
	negative := Perspective{Sentiment: SentimentNegative}
	neutral := Perspective{Sentiment: SentimentNeutral}
	sharedEntities := []map[string]bool{
		{"mayor": true, "council": true},
		{"mayor": true, "council": true},
	}
	disjointEntities := []map[string]bool{
		{"mayor": true},
		{"senate": true},
	}
	highDiscrepancy := []NumericDiscrepancy{{Metric: "Casualties", Ratio: 12, Significance: "high"}}
	lowDiscrepancy := []NumericDiscrepancy{{Metric: "Casualties", Ratio: 3, Significance: "low"}}

	tests := []struct {
		name           string
		perspectives   []Perspective
		entities       []map[string]bool
		discrepancies  []NumericDiscrepancy
		wantType       ConflictType
		wantConfidence float64
	}{
		{"high discrepancy wins", []Perspective{negative, neutral}, disjointEntities, highDiscrepancy, ConflictNumerical, 0.9},
		{"low discrepancy does not", []Perspective{neutral, neutral}, sharedEntities, lowDiscrepancy, ConflictInterpretation, 0.5},
		{"disjoint entities", []Perspective{neutral, neutral}, disjointEntities, nil, ConflictFacts, 0.7},
		{"sentiment split", []Perspective{negative, neutral}, sharedEntities, nil, ConflictFraming, 0.6},
		{"residual", []Perspective{neutral, neutral}, sharedEntities, nil, ConflictInterpretation, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyConflict(tt.perspectives, tt.entities, tt.discrepancies)
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestCrossGroupEntityOverlap(t *testing.T) {
	tests := []struct {
		name   string
		groups []map[string]bool
		want   float64
	}{
		{"identical", []map[string]bool{{"a": true, "b": true}, {"a": true, "b": true}}, 1.0},
		{"disjoint", []map[string]bool{{"a": true}, {"b": true}}, 0.0},
		{"partial", []map[string]bool{{"a": true, "b": true}, {"a": true, "c": true}}, 1.0 / 3.0},
		{"one empty", []map[string]bool{{"a": true}, {}}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crossGroupEntityOverlap(tt.groups); got != tt.want {
				t.Errorf("crossGroupEntityOverlap() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeywordOverlap(t *testing.T) {
	same := []map[string]bool{{"budget": true}, {"budget": true}}
	if got := keywordOverlap(same); got != 1.0 {
		t.Errorf("identical keyword sets = %v, want 1.0", got)
	}
	different := []map[string]bool{{"budget": true}, {"storm": true}}
	if got := keywordOverlap(different); got != 0.0 {
		t.Errorf("disjoint keyword sets = %v, want 0.0", got)
	}
}

func TestTokenizeTitle(t *testing.T) {
	got := tokenizeTitle("The Mayor's budget, and its critics!")
	want := []string{"mayor", "budget", "critics"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenizeTitle() = %v, want %v", got, want)
	}
}
