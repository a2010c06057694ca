// Package coherence scores how much the sources inside one event cluster
// agree with each other, and explains their disagreement when it is a
// genuine narrative conflict rather than stylistic noise.
package coherence

import "github.com/briahnloo/source-of-truth/internal/model"

// ExplanationSchemaVersion tags persisted ConflictExplanation JSON so the
// shape can evolve without silently tolerating missing keys.
const ExplanationSchemaVersion = 1

// Severity classifies how much a cluster's sources disagree.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ConflictType tags what kind of disagreement was detected.
type ConflictType string

const (
	// ConflictNumerical: sources report materially different numbers.
	ConflictNumerical ConflictType = "numerical"
	// ConflictFacts: sources describe largely different entities.
	ConflictFacts ConflictType = "facts"
	// ConflictFraming: same story, opposite emotional register.
	ConflictFraming ConflictType = "framing"
	// ConflictInterpretation: same facts, different conclusions.
	ConflictInterpretation ConflictType = "interpretation"
)

// Sentiment is a coarse per-perspective sentiment label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Perspective is a sub-group of a cluster's articles sharing one
// narrative angle. Transient: recomputed on every coherence pass.
type Perspective struct {
	Sources             []string      `json:"sources"`
	ArticleCount        int           `json:"article_count"`
	RepresentativeTitle string        `json:"representative_title"`
	KeyEntities         []string      `json:"key_entities,omitempty"`
	Sentiment           Sentiment     `json:"sentiment"`
	FocusKeywords       []string      `json:"focus_keywords,omitempty"`
	Leaning             model.Leaning `json:"leaning,omitempty"`
	Excerpts            []string      `json:"excerpts,omitempty"`
}

// NumericDiscrepancy records conflicting figures for one metric across
// perspectives.
type NumericDiscrepancy struct {
	Metric       string  `json:"metric"`
	MinValue     float64 `json:"min_value"`
	MaxValue     float64 `json:"max_value"`
	Ratio        float64 `json:"ratio"`
	Significance string  `json:"significance"` // "low", "medium", "high"
}

// Classification is the overall conflict-type judgment with confidence.
type Classification struct {
	Type       ConflictType `json:"type"`
	Confidence float64      `json:"confidence"`
}

// Explanation describes why a cluster's sources conflict.
// Replaced wholesale on recomputation; nil when no conflict is detected.
type Explanation struct {
	SchemaVersion  int                  `json:"schema_version"`
	Perspectives   []Perspective        `json:"perspectives"`
	KeyDifference  string               `json:"key_difference"`
	DifferenceType string               `json:"difference_type"` // "political" or "narrative"
	Discrepancies  []NumericDiscrepancy `json:"discrepancies,omitempty"`
	Classification *Classification      `json:"classification,omitempty"`
	KeywordOverlap float64              `json:"keyword_overlap"`
}

// Result is what one coherence recomputation produces for a cluster.
type Result struct {
	ClusterID   string       `json:"cluster_id"`
	Score       float64      `json:"score"` // 0-100
	Severity    Severity     `json:"severity"`
	Explanation *Explanation `json:"explanation,omitempty"`
}
