package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/briahnloo/source-of-truth/internal/config"
	"github.com/briahnloo/source-of-truth/internal/embed"
	"github.com/briahnloo/source-of-truth/internal/logging"
	"github.com/briahnloo/source-of-truth/internal/model"
	"github.com/google/uuid"
)

// Unassigned marks an article that landed in no cluster this run.
const Unassigned = ""

// RunStats summarizes one incremental clustering pass.
type RunStats struct {
	Processed   int
	Matched     int // assigned via an existing anchor
	NewClusters int // clusters created by the sparse grapher
	Unassigned  int // noise, retried on a future run
	Reclustered bool
}

// Clusterer assigns new articles to events incrementally: anchor match
// first, sparse KNN clustering for the remainder, and a periodic full
// recluster pass to correct drift. One Clusterer owns all mutation of
// cluster state; callers may be concurrent but passes are serialized.
type Clusterer struct {
	cfg      config.ClusterConfig
	anchors  *AnchorStore
	repo     model.Repository
	embedder embed.BatchEmbedder

	mu            sync.Mutex
	lastRecluster time.Time
}

// NewClusterer creates an incremental clusterer. The embedder is only
// used by full recluster passes to re-embed cluster members.
func NewClusterer(cfg config.ClusterConfig, anchors *AnchorStore, repo model.Repository, embedder embed.BatchEmbedder) *Clusterer {
	return &Clusterer{
		cfg:           cfg,
		anchors:       anchors,
		repo:          repo,
		embedder:      embedder,
		lastRecluster: time.Now(),
	}
}

// ProcessNewArticles assigns each article to a cluster or leaves it
// unassigned. Articles and embeddings must be parallel slices.
//
// Matched articles do not trigger anchor recomputation; that deferral is
// the whole cost saving over full re-clustering, paid back by the
// periodic recluster pass.
func (c *Clusterer) ProcessNewArticles(ctx context.Context, articles []model.Article, embeddings [][]float32) (map[string]string, RunStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := RunStats{Processed: len(articles)}
	assignments := make(map[string]string, len(articles))

	// Phase 1: match against known anchors.
	var unmatched []int
	for i, article := range articles {
		if i >= len(embeddings) || len(embeddings[i]) == 0 {
			assignments[article.ID] = Unassigned
			stats.Unassigned++
			continue
		}

		clusterID, sim, ok := c.anchors.BestMatch(embeddings[i], c.cfg.AnchorThreshold)
		if !ok {
			unmatched = append(unmatched, i)
			continue
		}

		assignments[article.ID] = clusterID
		c.anchors.AddMember(clusterID)
		c.assign(article.ID, clusterID)
		stats.Matched++
		logging.Debug("Article matched existing event", "article", article.ID, "cluster", clusterID, "similarity", sim)
	}

	// Phase 2: sparse-graph clustering over the leftovers.
	c.clusterUnmatched(articles, embeddings, unmatched, assignments, &stats)

	// Phase 3: periodic drift correction.
	if c.cfg.ReclusterInterval > 0 && time.Since(c.lastRecluster) >= c.cfg.ReclusterInterval {
		c.fullRecluster(ctx)
		stats.Reclustered = true
	}

	if err := c.anchors.Persist(); err != nil {
		// New anchors survive in memory for this process; only a restart
		// before the next successful persist loses them.
		logging.Error("Anchor persistence failed", "error", err)
	}

	logging.Info("Incremental clustering pass complete",
		"processed", stats.Processed,
		"matched", stats.Matched,
		"new_clusters", stats.NewClusters,
		"unassigned", stats.Unassigned)

	return assignments, stats
}

// clusterUnmatched runs the sparse grapher over unmatched articles and
// registers each non-noise component as a brand-new cluster.
func (c *Clusterer) clusterUnmatched(articles []model.Article, embeddings [][]float32, unmatched []int, assignments map[string]string, stats *RunStats) {
	if len(unmatched) == 0 {
		return
	}

	vecs := make([][]float32, len(unmatched))
	for i, idx := range unmatched {
		vecs[i] = embeddings[idx]
	}

	labels := SparseCluster(vecs, SparseOptions{
		K:                 c.cfg.KNeighbors,
		DistanceThreshold: c.cfg.DistanceThreshold,
		MinClusterSize:    c.cfg.MinClusterSize,
	})

	// Group member positions by component label.
	components := make(map[int][]int)
	for i, label := range labels {
		if label == Noise {
			article := articles[unmatched[i]]
			assignments[article.ID] = Unassigned
			stats.Unassigned++
			continue
		}
		components[label] = append(components[label], i)
	}

	for _, members := range components {
		clusterID := uuid.NewString()

		memberVecs := make([][]float32, len(members))
		for i, pos := range members {
			memberVecs[i] = vecs[pos]
		}

		medoid := Medoid(memberVecs)
		c.anchors.Upsert(clusterID, memberVecs[medoid], len(members))

		for _, pos := range members {
			article := articles[unmatched[pos]]
			assignments[article.ID] = clusterID
			c.assign(article.ID, clusterID)
		}

		stats.NewClusters++
		logging.Info("New event cluster formed", "cluster", clusterID, "members", len(members))
	}
}

// assign writes a cluster assignment back through the repository.
// A write failure leaves the article to be retried next run.
func (c *Clusterer) assign(articleID, clusterID string) {
	if c.repo == nil {
		return
	}
	if err := c.repo.AssignCluster(articleID, clusterID); err != nil {
		logging.Warn("Cluster assignment write failed", "article", articleID, "cluster", clusterID, "error", err)
	}
}

// ForceRecluster runs a full recluster pass immediately.
func (c *Clusterer) ForceRecluster(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fullRecluster(ctx)
}

// fullRecluster recomputes every cluster's anchor from its full current
// membership. This is the only place membership-wide anchor drift is
// corrected. Caller must hold c.mu.
func (c *Clusterer) fullRecluster(ctx context.Context) {
	if c.repo == nil || c.embedder == nil {
		return
	}

	start := time.Now()
	updated := 0

	for _, clusterID := range c.anchors.ClusterIDs() {
		members, err := c.repo.ArticlesInCluster(clusterID)
		if err != nil {
			logging.Warn("Recluster: member fetch failed", "cluster", clusterID, "error", err)
			continue
		}
		if len(members) == 0 {
			continue
		}

		texts := make([]string, len(members))
		for i := range members {
			texts[i] = members[i].Text()
		}

		vecs, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			logging.Warn("Recluster: embedding failed", "cluster", clusterID, "error", err)
			continue
		}

		medoid := Medoid(vecs)
		if medoid < 0 {
			continue
		}
		c.anchors.Upsert(clusterID, vecs[medoid], len(members))
		updated++
	}

	c.lastRecluster = time.Now()
	logging.Info("Full recluster pass complete",
		"clusters", updated,
		"duration", time.Since(start).Round(time.Millisecond))
}
