package model

// Leaning is a political leaning bucket.
type Leaning string

const (
	LeanLeft   Leaning = "left"
	LeanCenter Leaning = "center"
	LeanRight  Leaning = "right"
)

// PoliticalScores holds per-bucket political bias scores for a source.
type PoliticalScores struct {
	Left   float64 `json:"left"`
	Center float64 `json:"center"`
	Right  float64 `json:"right"`
}

// SourceBias is the bias metadata for one source domain.
type SourceBias struct {
	Geographic string          `json:"geographic"`
	Political  PoliticalScores `json:"political"`
	Tone       string          `json:"tone"`
	Detail     string          `json:"detail"`
}

// Leaning returns the bucket with the highest political score.
// Ties resolve toward center, matching the neutral default.
func (b *SourceBias) Leaning() Leaning {
	if b == nil {
		return LeanCenter
	}
	lean := LeanCenter
	best := b.Political.Center
	if b.Political.Left > best {
		lean, best = LeanLeft, b.Political.Left
	}
	if b.Political.Right > best {
		lean = LeanRight
	}
	return lean
}

// BiasLookup resolves bias metadata for a source domain.
// Implementations live outside the core; unknown sources return nil.
type BiasLookup interface {
	SourceBias(domain string) *SourceBias
}

// BiasLookupFunc adapts a function to the BiasLookup interface.
type BiasLookupFunc func(domain string) *SourceBias

func (f BiasLookupFunc) SourceBias(domain string) *SourceBias { return f(domain) }
