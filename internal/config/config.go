// Package config holds the persistent configuration for the clustering
// and coherence engine. Every threshold the engine depends on lives here
// so behavior can be tuned without touching code.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the persistent application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Coherence CoherenceConfig `yaml:"coherence"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "openai" or "ollama"
	OpenAIModel    string `yaml:"openai_model"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
}

// CacheConfig holds embedding cache settings
type CacheConfig struct {
	MaxSize int           `yaml:"max_size"` // entries kept after an eviction pass
	TTL     time.Duration `yaml:"ttl"`      // measured from creation, not access
}

// ClusterConfig holds incremental clustering settings.
// These are tunable parameters, not derived values; changing them changes
// which articles land in which event.
type ClusterConfig struct {
	// AnchorThreshold is the minimum cosine similarity for an article to
	// join an existing cluster via its anchor.
	AnchorThreshold float64 `yaml:"anchor_threshold"`

	// KNeighbors is the k for the sparse KNN graph over unmatched articles.
	KNeighbors int `yaml:"k_neighbors"`

	// DistanceThreshold prunes KNN edges: cosine distance above this is
	// not an edge (0.3 distance = 0.7 similarity).
	DistanceThreshold float64 `yaml:"distance_threshold"`

	// MinClusterSize is the floor below which a connected component is noise.
	MinClusterSize int `yaml:"min_cluster_size"`

	// ReclusterInterval is how often a full anchor recomputation runs.
	ReclusterInterval time.Duration `yaml:"recluster_interval"`
}

// CoherenceConfig holds coherence scoring and conflict settings
type CoherenceConfig struct {
	// Sub-score weights; must sum to 1.0.
	EmbeddingWeight float64 `yaml:"embedding_weight"`
	EntityWeight    float64 `yaml:"entity_weight"`
	TitleWeight     float64 `yaml:"title_weight"`

	// Severity cutoffs on the 0-100 coherence score.
	NoneThreshold   float64 `yaml:"none_threshold"`   // >= this: no conflict
	LowThreshold    float64 `yaml:"low_threshold"`    // >= this: low
	MediumThreshold float64 `yaml:"medium_threshold"` // >= this: medium, else high

	// DiversitySizeCutoff: non-diverse clusters at or above this size can
	// still register a low conflict when coherence is below LowCoherenceFloor.
	DiversitySizeCutoff int     `yaml:"diversity_size_cutoff"`
	LowCoherenceFloor   float64 `yaml:"low_coherence_floor"`

	// PoliticalGroupingCutoff: below this coherence, perspectives group by
	// political leaning rather than narrative sub-clustering.
	PoliticalGroupingCutoff float64 `yaml:"political_grouping_cutoff"`

	// DiscrepancyRatio is the min max/min ratio for a numeric discrepancy.
	DiscrepancyRatio float64 `yaml:"discrepancy_ratio"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".source-of-truth", "truth.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OpenAIModel:    "text-embedding-3-small",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "nomic-embed-text",
		},
		Cache: CacheConfig{
			MaxSize: 5000,
			TTL:     24 * time.Hour,
		},
		Cluster: ClusterConfig{
			AnchorThreshold:   0.6,
			KNeighbors:        5,
			DistanceThreshold: 0.3,
			MinClusterSize:    3,
			ReclusterInterval: 7 * 24 * time.Hour,
		},
		Coherence: CoherenceConfig{
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
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".source-of-truth", "config.yaml")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from the given path, or returns defaults when the
// file is missing or malformed. A bad config file should never stop a run.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), nil
	}

	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
