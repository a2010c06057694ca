// truthctl is the operator CLI: inspect cluster state, print coherence
// reports, and force a full recluster outside the daemon's schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/briahnloo/source-of-truth/internal/cluster"
	"github.com/briahnloo/source-of-truth/internal/coherence"
	"github.com/briahnloo/source-of-truth/internal/config"
	"github.com/briahnloo/source-of-truth/internal/embed"
	"github.com/briahnloo/source-of-truth/internal/logging"
	"github.com/briahnloo/source-of-truth/internal/store"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		fatal("Failed to open database %s: %v", cfg.Database.Path, err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch flag.Arg(0) {
	case "clusters":
		err = showClusters(st)
	case "report":
		err = showReport(ctx, cfg, st)
	case "recluster":
		err = forceRecluster(ctx, cfg, st)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal("%v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: truthctl <command>

Commands:
  clusters    list event clusters with member counts
  report      recompute and print coherence for every cluster
  recluster   force a full anchor recomputation
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func showClusters(st *store.Store) error {
	summaries, err := st.ClusterSummaries()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No clusters yet.")
		return nil
	}

	fmt.Printf("%-38s %s\n", "CLUSTER", "MEMBERS")
	for _, cs := range summaries {
		fmt.Printf("%-38s %d\n", cs.ClusterID, cs.Members)
	}
	return nil
}

// showReport re-scores every cluster from scratch and prints the ones
// that conflict, most severe first within the listing order.
func showReport(ctx context.Context, cfg *config.Config, st *store.Store) error {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	engine := coherence.NewEngine(cfg.Coherence, nil, nil)

	summaries, err := st.ClusterSummaries()
	if err != nil {
		return err
	}

	conflicts := 0
	for _, cs := range summaries {
		members, err := st.ArticlesInCluster(cs.ClusterID)
		if err != nil {
			return fmt.Errorf("cluster %s: %w", cs.ClusterID, err)
		}

		texts := make([]string, len(members))
		for i := range members {
			texts[i] = members[i].Text()
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding cluster %s: %w", cs.ClusterID, err)
		}

		r := engine.Recompute(cs.ClusterID, members, vecs)
		if r.Severity == coherence.SeverityNone {
			continue
		}

		conflicts++
		fmt.Printf("%s  score=%.1f  severity=%s  members=%d\n",
			r.ClusterID, r.Score, r.Severity, cs.Members)
		if r.Explanation != nil {
			fmt.Printf("  %s\n", r.Explanation.KeyDifference)
			for _, p := range r.Explanation.Perspectives {
				fmt.Printf("  - %d articles (%s, %s): %s\n",
					p.ArticleCount, p.Leaning, p.Sentiment, p.RepresentativeTitle)
			}
			for _, d := range r.Explanation.Discrepancies {
				fmt.Printf("  ! %s: %.0f vs %.0f (%.1fx, %s)\n",
					d.Metric, d.MinValue, d.MaxValue, d.Ratio, d.Significance)
			}
		}
	}

	fmt.Printf("\n%d clusters, %d with conflicts\n", len(summaries), conflicts)
	return nil
}

func forceRecluster(ctx context.Context, cfg *config.Config, st *store.Store) error {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	anchors := cluster.NewAnchorStore(st)
	anchors.Load()
	before := anchors.Len()

	clusterer := cluster.NewClusterer(cfg.Cluster, anchors, st, embedder)
	clusterer.ForceRecluster(ctx)

	if err := anchors.Persist(); err != nil {
		return fmt.Errorf("persisting anchors: %w", err)
	}

	fmt.Printf("Reclustered %d event clusters.\n", before)
	return nil
}

func buildEmbedder(cfg *config.Config) (embed.BatchEmbedder, error) {
	var inner embed.BatchEmbedder
	if apiKey := os.Getenv("OPENAI_API_KEY"); cfg.Embedding.Provider == "openai" && apiKey != "" {
		inner = embed.NewOpenAIEmbedder(apiKey, cfg.Embedding.OpenAIModel)
	} else {
		inner = embed.NewOllamaEmbedder(cfg.Embedding.OllamaEndpoint, cfg.Embedding.OllamaModel)
	}
	if !inner.Available() {
		return nil, fmt.Errorf("embedding provider %q is not reachable", cfg.Embedding.Provider)
	}
	return embed.NewCachingEmbedder(inner, embed.NewCache(cfg.Cache.MaxSize, cfg.Cache.TTL)), nil
}
