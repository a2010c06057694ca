// truthd is the clustering and coherence daemon: it periodically picks
// up newly ingested articles, assigns them to event clusters, and
// re-scores every touched cluster for narrative coherence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/briahnloo/source-of-truth/internal/cluster"
	"github.com/briahnloo/source-of-truth/internal/coherence"
	"github.com/briahnloo/source-of-truth/internal/config"
	"github.com/briahnloo/source-of-truth/internal/embed"
	"github.com/briahnloo/source-of-truth/internal/entity"
	"github.com/briahnloo/source-of-truth/internal/logging"
	"github.com/briahnloo/source-of-truth/internal/model"
	"github.com/briahnloo/source-of-truth/internal/pipeline"
	"github.com/briahnloo/source-of-truth/internal/store"
)

const pollInterval = 2 * time.Minute

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Failed to load config", "error", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logging.Fatal("Failed to create data directory", "error", err)
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal("Failed to open database", "error", err)
	}
	defer st.Close()

	embedder := buildEmbedder(cfg)
	if !embedder.Available() {
		logging.Warn("Embedding provider not reachable; batches will fail until it is",
			"provider", cfg.Embedding.Provider)
	}
	cache := embed.NewCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
	caching := embed.NewCachingEmbedder(embedder, cache)

	anchors := cluster.NewAnchorStore(st)
	anchors.Load()

	clusterer := cluster.NewClusterer(cfg.Cluster, anchors, st, caching)

	bias := loadBias()
	engine := coherence.NewEngine(cfg.Coherence, bias, entity.NewProseExtractor())

	intake := pipeline.NewIntake(64, st, caching, entity.NewProseExtractor(), clusterer, engine, logResult)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	intake.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	logging.Info("truthd started", "poll", pollInterval, "provider", cfg.Embedding.Provider)

	lastRun := time.Now().Add(-24 * time.Hour)
	runBatch(st, intake, &lastRun)

	for {
		select {
		case <-ticker.C:
			runBatch(st, intake, &lastRun)
		case sig := <-sigChan:
			logging.Info("Shutting down", "signal", sig)
			intake.Stop()
			// Anchors persist after every pass; this final write covers
			// membership counts touched since then.
			if err := anchors.Persist(); err != nil {
				logging.Error("Final anchor persistence failed", "error", err)
			}
			stats := cache.Stats()
			logging.Info("Embedding cache final stats",
				"size", stats.Size, "hits", stats.Hits, "misses", stats.Misses)
			return
		}
	}
}

// runBatch feeds every article ingested since the last run into the
// pipeline. Unassigned articles keep an empty cluster id and are picked
// up again by a later run through their publish time.
func runBatch(st *store.Store, intake *pipeline.Intake, lastRun *time.Time) {
	cutoff := *lastRun
	*lastRun = time.Now()

	articles, err := st.ArticlesSince(cutoff)
	if err != nil {
		logging.Error("Article fetch failed", "error", err)
		return
	}

	var pending []model.Article
	for _, a := range articles {
		if a.ClusterID == cluster.Unassigned {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return
	}

	logging.Info("Submitting batch", "articles", len(pending))
	intake.Submit(pending)
}

// buildEmbedder picks the embedding provider: OpenAI when configured
// with a key, Ollama otherwise.
func buildEmbedder(cfg *config.Config) embed.BatchEmbedder {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if cfg.Embedding.Provider == "openai" && apiKey != "" {
		return embed.NewOpenAIEmbedder(apiKey, cfg.Embedding.OpenAIModel)
	}
	if cfg.Embedding.Provider == "openai" {
		logging.Warn("OPENAI_API_KEY not set, falling back to Ollama")
	}
	return embed.NewOllamaEmbedder(cfg.Embedding.OllamaEndpoint, cfg.Embedding.OllamaModel)
}

// loadBias reads the optional source bias table next to the config file.
func loadBias() model.BiasLookup {
	path := filepath.Join(filepath.Dir(config.ConfigPath()), "sources.yaml")
	lookup, err := entity.LoadBiasFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Source bias table unreadable", "path", path, "error", err)
		}
		return nil
	}
	logging.Info("Source bias table loaded", "sources", len(lookup))
	return lookup
}

// logResult is the default sink: conflicts are surfaced in the log,
// everything is visible at debug level.
func logResult(r coherence.Result) {
	if r.Severity == coherence.SeverityNone {
		logging.Debug("Cluster coherent", "cluster", r.ClusterID, "score", r.Score)
		return
	}

	fields := []interface{}{
		"cluster", r.ClusterID,
		"score", r.Score,
		"severity", r.Severity,
	}
	if r.Explanation != nil {
		fields = append(fields,
			"perspectives", len(r.Explanation.Perspectives),
			"difference", r.Explanation.KeyDifference)
		if r.Explanation.Classification != nil {
			fields = append(fields, "type", r.Explanation.Classification.Type)
		}
	}
	logging.Warn("Narrative conflict detected", fields...)
}
