package entity

import (
	"fmt"
	"os"
	"strings"

	"github.com/briahnloo/source-of-truth/internal/model"
	"gopkg.in/yaml.v3"
)

// StaticBiasLookup resolves source bias from a fixed table keyed by
// source domain. Unknown domains return nil, which downstream code
// treats as a neutral center leaning.
type StaticBiasLookup map[string]*model.SourceBias

// SourceBias implements model.BiasLookup.
func (l StaticBiasLookup) SourceBias(domain string) *model.SourceBias {
	return l[strings.ToLower(domain)]
}

// NoBias is a lookup that knows nothing; every source reads as center.
var NoBias = model.BiasLookupFunc(func(string) *model.SourceBias { return nil })

// LoadBiasFile reads a YAML table mapping source domains to bias
// metadata. Keys are normalized to lowercase.
func LoadBiasFile(path string) (StaticBiasLookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]*model.SourceBias
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing bias table %s: %w", path, err)
	}

	lookup := make(StaticBiasLookup, len(raw))
	for domain, bias := range raw {
		lookup[strings.ToLower(domain)] = bias
	}
	return lookup, nil
}
