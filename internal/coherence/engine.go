package coherence

import (
	"github.com/briahnloo/source-of-truth/internal/config"
	"github.com/briahnloo/source-of-truth/internal/embed"
	"github.com/briahnloo/source-of-truth/internal/entity"
	"github.com/briahnloo/source-of-truth/internal/logging"
	"github.com/briahnloo/source-of-truth/internal/model"
)

// Engine computes coherence scores and conflict explanations for event
// clusters. Stateless between calls: a cluster's score is a pure
// function of its current members and their embeddings.
type Engine struct {
	cfg       config.CoherenceConfig
	bias      model.BiasLookup
	extractor entity.Extractor
}

// NewEngine creates a coherence engine. The bias lookup may be nil
// (every source reads as center); the extractor may be nil (articles
// without stored entities score zero entity overlap against non-empty
// sets, which is the honest answer when no extraction exists).
func NewEngine(cfg config.CoherenceConfig, bias model.BiasLookup, extractor entity.Extractor) *Engine {
	if bias == nil {
		bias = entity.NoBias
	}
	return &Engine{cfg: cfg, bias: bias, extractor: extractor}
}

// Recompute scores one cluster. Members and embeddings are parallel
// slices. The score and severity are always produced; the explanation
// degrades to nil or partial when its inputs are unusable, never
// blocking the score.
func (e *Engine) Recompute(clusterID string, members []model.Article, embeddings [][]float32) Result {
	// Single-member and empty clusters are trivially coherent.
	if len(members) <= 1 {
		return Result{ClusterID: clusterID, Score: 100, Severity: SeverityNone}
	}

	entitySets := e.entitySets(members)

	embeddingSim := meanPairwiseCosine(embeddings)
	entityOverlap := meanPairwiseJaccard(entitySets)
	titleConsistency := meanPairwiseTitleJaccard(members)

	score := (e.cfg.EmbeddingWeight*embeddingSim +
		e.cfg.EntityWeight*entityOverlap +
		e.cfg.TitleWeight*titleConsistency) * 100
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	severity := e.severityFor(score)
	diverse := e.politicallyDiverse(members)

	// Apparent disagreement without political diversity is usually
	// stylistic variance between outlets, not a narrative split.
	if severity != SeverityNone && !diverse {
		if len(members) < e.cfg.DiversitySizeCutoff {
			severity = SeverityNone
		} else if score < e.cfg.LowCoherenceFloor {
			severity = SeverityLow
		} else {
			severity = SeverityNone
		}
	}

	result := Result{ClusterID: clusterID, Score: score, Severity: severity}

	if severity != SeverityNone {
		result.Explanation = e.explain(members, embeddings, entitySets, score, diverse)
	}

	logging.Debug("Coherence recomputed",
		"cluster", clusterID,
		"score", score,
		"severity", severity,
		"embedding", embeddingSim,
		"entities", entityOverlap,
		"titles", titleConsistency,
		"diverse", diverse)

	return result
}

// severityFor maps a 0-100 coherence score to a conflict severity.
func (e *Engine) severityFor(score float64) Severity {
	switch {
	case score >= e.cfg.NoneThreshold:
		return SeverityNone
	case score >= e.cfg.LowThreshold:
		return SeverityLow
	case score >= e.cfg.MediumThreshold:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// entitySets returns each member's entity set, falling back to on-the-fly
// extraction when the stored set is absent.
func (e *Engine) entitySets(members []model.Article) []map[string]bool {
	sets := make([]map[string]bool, len(members))
	for i, m := range members {
		entities := m.Entities
		if len(entities) == 0 && e.extractor != nil {
			entities = e.extractor.Extract(m.Text())
		}
		set := make(map[string]bool, len(entities))
		for _, ent := range entities {
			set[normalizeEntity(ent)] = true
		}
		sets[i] = set
	}
	return sets
}

// politicallyDiverse reports whether the cluster's sources span both a
// left-leaning and a right-leaning classification.
func (e *Engine) politicallyDiverse(members []model.Article) bool {
	var hasLeft, hasRight bool
	for _, m := range members {
		switch e.bias.SourceBias(m.Source).Leaning() {
		case model.LeanLeft:
			hasLeft = true
		case model.LeanRight:
			hasRight = true
		}
	}
	return hasLeft && hasRight
}

// meanPairwiseCosine averages cosine similarity over the upper triangle.
// A single vector is perfectly self-similar.
func meanPairwiseCosine(embeddings [][]float32) float64 {
	n := len(embeddings)
	if n <= 1 {
		return 1.0
	}

	var sum float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += float64(embed.CosineSimilarity(embeddings[i], embeddings[j]))
			pairs++
		}
	}
	return sum / float64(pairs)
}

// meanPairwiseJaccard averages Jaccard similarity over all entity-set pairs.
func meanPairwiseJaccard(sets []map[string]bool) float64 {
	n := len(sets)
	if n <= 1 {
		return 1.0
	}

	var sum float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// meanPairwiseTitleJaccard averages Jaccard similarity of stop-word
// filtered title tokens over all member pairs.
func meanPairwiseTitleJaccard(members []model.Article) float64 {
	n := len(members)
	if n <= 1 {
		return 1.0
	}

	sets := make([]map[string]bool, n)
	for i, m := range members {
		sets[i] = tokenSet(tokenizeTitle(m.Title))
	}
	return meanPairwiseJaccard(sets)
}
