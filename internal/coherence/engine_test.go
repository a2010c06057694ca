package coherence

import (
	"testing"

	"github.com/briahnloo/source-of-truth/internal/config"
	"github.com/briahnloo/source-of-truth/internal/model"
)

func testCoherenceConfig() config.CoherenceConfig {
	return config.CoherenceConfig{
		EmbeddingWeight:         0.6,
		EntityWeight:            0.25,
		TitleWeight:             0.15,
		NoneThreshold:           90,
		LowThreshold:            70,
		MediumThreshold:         50,
		DiversitySizeCutoff:     8,
		LowCoherenceFloor:       40,
		PoliticalGroupingCutoff: 60,
		DiscrepancyRatio:        2.0,
	}
}

// testBias classifies sources by domain prefix: "left-*" and "right-*"
// lean accordingly, everything else is center.
var testBias = model.BiasLookupFunc(func(domain string) *model.SourceBias {
	switch {
	case len(domain) >= 5 && domain[:5] == "left-":
		return &model.SourceBias{Political: model.PoliticalScores{Left: 0.8, Center: 0.1, Right: 0.1}}
	case len(domain) >= 6 && domain[:6] == "right-":
		return &model.SourceBias{Political: model.PoliticalScores{Left: 0.1, Center: 0.1, Right: 0.8}}
	}
	return &model.SourceBias{Political: model.PoliticalScores{Center: 0.8, Left: 0.1, Right: 0.1}}
})

func newTestEngine() *Engine {
	return NewEngine(testCoherenceConfig(), testBias, nil)
}

func article(id, source, title string, entities ...string) model.Article {
	return model.Article{ID: id, Source: source, Title: title, Entities: entities}
}

func TestSingleMemberTriviallyCoherent(t *testing.T) {
	e := newTestEngine()

	r := e.Recompute("c1",
		[]model.Article{article("a1", "left-news.com", "Total catastrophe unfolds, thousands dead")},
		[][]float32{{1, 0, 0}})

	if r.Score != 100 {
		t.Errorf("Score = %v, want 100", r.Score)
	}
	if r.Severity != SeverityNone {
		t.Errorf("Severity = %v, want none", r.Severity)
	}
	if r.Explanation != nil {
		t.Error("single member must not produce an explanation")
	}
}

func TestEmptyClusterDefaults(t *testing.T) {
	e := newTestEngine()
	r := e.Recompute("c1", nil, nil)
	if r.Score != 100 || r.Severity != SeverityNone {
		t.Errorf("empty cluster = %+v, want score 100 / severity none", r)
	}
}

func TestIdentityHighCoherence(t *testing.T) {
	e := newTestEngine()

	for _, size := range []int{2, 3, 5} {
		members := make([]model.Article, size)
		embeddings := make([][]float32, size)
		for i := range members {
			members[i] = article("a", "sources.com", "Storm hits coast thousands evacuate", "storm", "coast")
			embeddings[i] = []float32{0.3, 0.4, 0.5}
		}

		r := e.Recompute("c1", members, embeddings)
		if r.Score < 95 {
			t.Errorf("size %d: Score = %v, want >= 95 for identical members", size, r.Score)
		}
		if r.Severity != SeverityNone {
			t.Errorf("size %d: Severity = %v, want none", size, r.Severity)
		}
	}
}

func TestOrthogonalityYieldsConflict(t *testing.T) {
	e := newTestEngine()

	// Mutually orthogonal embeddings, disjoint entities and titles, and
	// politically diverse sources so the diversity gate does not mute it.
	members := []model.Article{
		article("a1", "left-herald.com", "Union rally energizes downtown", "union"),
		article("a2", "right-post.com", "Council debates zoning reform", "council"),
		article("a3", "center-wire.com", "Harvest festival draws visitors", "festival"),
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	r := e.Recompute("c1", members, embeddings)
	if r.Severity != SeverityMedium && r.Severity != SeverityHigh {
		t.Errorf("Severity = %v, want medium or high for orthogonal cluster", r.Severity)
	}
	if r.Explanation == nil {
		t.Error("conflicting cluster must carry an explanation")
	}
}

func TestDiversityGateMutesSmallClusters(t *testing.T) {
	e := newTestEngine()

	// Same disagreement as above, but every source is center-leaning and
	// the cluster is small: stylistic variance, not a narrative split.
	members := []model.Article{
		article("a1", "wire-one.com", "Union rally energizes downtown", "union"),
		article("a2", "wire-two.com", "Council debates zoning reform", "council"),
		article("a3", "wire-three.com", "Harvest festival draws visitors", "festival"),
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	r := e.Recompute("c1", members, embeddings)
	if r.Severity != SeverityNone {
		t.Errorf("Severity = %v, want none for non-diverse small cluster", r.Severity)
	}
	if r.Explanation != nil {
		t.Error("muted cluster must not carry an explanation")
	}
}

func TestDiversityGateLargeClusterLowCoherence(t *testing.T) {
	e := newTestEngine()

	// Eight center sources with mutually orthogonal coverage: large
	// enough that the gate only downgrades to low.
	var members []model.Article
	var embeddings [][]float32
	titles := []string{
		"Union rally energizes downtown",
		"Council debates zoning reform",
		"Harvest festival draws visitors",
		"Transit strike strands commuters",
		"Museum opens modern wing",
		"Drought tightens water limits",
		"Startup relocates headquarters",
		"Marathon reroutes through park",
	}
	for i, title := range titles {
		members = append(members, article("a", "wire.com", title, title[:6]))
		vec := make([]float32, 8)
		vec[i] = 1
		embeddings = append(embeddings, vec)
	}

	r := e.Recompute("c1", members, embeddings)
	if r.Score >= 40 {
		t.Fatalf("Score = %v, expected below the low-coherence floor", r.Score)
	}
	if r.Severity != SeverityLow {
		t.Errorf("Severity = %v, want low for large non-diverse incoherent cluster", r.Severity)
	}
}

func TestEndToEndAgreedStory(t *testing.T) {
	e := newTestEngine()

	members := []model.Article{
		article("a1", "wire-one.com", "Storm hits coast, thousands evacuate"),
		article("a2", "wire-two.com", "Evacuations ordered as storm approaches coast"),
		article("a3", "wire-three.com", "Coastal storm triggers mass evacuation"),
	}
	// Near-identical embeddings from three different center sources.
	embeddings := [][]float32{
		{0.7, 0.7, 0.01},
		{0.7, 0.7, 0.02},
		{0.7, 0.7, 0.03},
	}

	r := e.Recompute("c1", members, embeddings)
	if r.Score < 85 {
		t.Errorf("Score = %v, want >= 85", r.Score)
	}
	if r.Severity != SeverityNone {
		t.Errorf("Severity = %v, want none", r.Severity)
	}
	if r.Explanation != nil {
		t.Error("agreed story must not generate a conflict explanation")
	}
}

func TestEndToEndFramingConflict(t *testing.T) {
	e := newTestEngine()

	// Two left-leaning sources with negative framing, three right-leaning
	// with neutral framing, orthogonal embeddings between the groups.
	members := []model.Article{
		article("a1", "left-herald.com", "Protest crackdown turns violent, dozens injured"),
		article("a2", "left-tribune.com", "Violent crackdown on protesters sparks outrage"),
		article("a3", "right-post.com", "City reviews permit rules after weekend gathering"),
		article("a4", "right-ledger.com", "Officials outline permit process for gatherings"),
		article("a5", "right-courier.com", "Downtown gathering prompts review of event permits"),
	}
	embeddings := [][]float32{
		{1, 0.1, 0, 0},
		{1, 0.2, 0, 0},
		{0, 0, 1, 0.1},
		{0, 0, 1, 0.2},
		{0, 0, 1, 0.3},
	}

	r := e.Recompute("c1", members, embeddings)

	if r.Severity != SeverityMedium && r.Severity != SeverityHigh {
		t.Fatalf("Severity = %v, want >= medium", r.Severity)
	}
	exp := r.Explanation
	if exp == nil {
		t.Fatal("expected a conflict explanation")
	}
	if len(exp.Perspectives) != 2 {
		t.Fatalf("perspectives = %d, want 2 (left and right)", len(exp.Perspectives))
	}
	if exp.DifferenceType != "political" {
		t.Errorf("DifferenceType = %q, want political", exp.DifferenceType)
	}
	if exp.Classification == nil {
		t.Fatal("expected a conflict classification")
	}
	if ct := exp.Classification.Type; ct != ConflictFraming && ct != ConflictFacts {
		t.Errorf("conflict type = %v, want framing or facts", ct)
	}

	// The two groups carry opposite sentiment.
	if exp.Perspectives[0].Sentiment == exp.Perspectives[1].Sentiment {
		t.Errorf("perspectives share sentiment %v, want a split", exp.Perspectives[0].Sentiment)
	}
}

func TestNumericalConflictClassification(t *testing.T) {
	e := newTestEngine()

	members := []model.Article{
		article("a1", "left-herald.com", "March draws 50,000 people downtown"),
		article("a2", "left-tribune.com", "Organizers say 50,000 people joined the march"),
		article("a3", "right-post.com", "Police estimate 5,000 people at downtown march"),
		article("a4", "right-ledger.com", "About 5,000 people march downtown, officials say"),
	}
	embeddings := [][]float32{
		{1, 0.1, 0},
		{1, 0.2, 0},
		{0, 0.1, 1},
		{0, 0.2, 1},
	}

	r := e.Recompute("c1", members, embeddings)
	exp := r.Explanation
	if exp == nil {
		t.Fatal("expected a conflict explanation")
	}

	var found *NumericDiscrepancy
	for i := range exp.Discrepancies {
		if exp.Discrepancies[i].Metric == "Crowd Size/Attendance" {
			found = &exp.Discrepancies[i]
		}
	}
	if found == nil {
		t.Fatalf("no crowd size discrepancy detected: %+v", exp.Discrepancies)
	}
	if found.Ratio != 10 {
		t.Errorf("Ratio = %v, want 10", found.Ratio)
	}
	if found.Significance != "high" {
		t.Errorf("Significance = %q, want high", found.Significance)
	}

	if exp.Classification == nil || exp.Classification.Type != ConflictNumerical {
		t.Errorf("classification = %+v, want numerical", exp.Classification)
	}
	if exp.Classification.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", exp.Classification.Confidence)
	}
}

func TestDeterministicRecompute(t *testing.T) {
	e := newTestEngine()

	members := []model.Article{
		article("a1", "left-herald.com", "Protest crackdown turns violent", "police", "protest"),
		article("a2", "right-post.com", "City reviews permit rules", "city", "permits"),
		article("a3", "right-ledger.com", "Officials outline permit process", "officials", "permits"),
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0.1},
		{0, 1, 0.2},
	}

	first := e.Recompute("c1", members, embeddings)
	for i := 0; i < 5; i++ {
		again := e.Recompute("c1", members, embeddings)
		if again.Score != first.Score || again.Severity != first.Severity {
			t.Fatalf("recompute %d diverged: %v/%v vs %v/%v", i, again.Score, again.Severity, first.Score, first.Severity)
		}
	}
}
