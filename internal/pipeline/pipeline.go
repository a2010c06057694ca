// Package pipeline connects ingestion to the clustering and coherence
// engines: a bounded intake queue fed by any number of producers,
// drained by a single consumer so all cluster mutation stays
// single-writer.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/briahnloo/source-of-truth/internal/cluster"
	"github.com/briahnloo/source-of-truth/internal/coherence"
	"github.com/briahnloo/source-of-truth/internal/embed"
	"github.com/briahnloo/source-of-truth/internal/entity"
	"github.com/briahnloo/source-of-truth/internal/logging"
	"github.com/briahnloo/source-of-truth/internal/model"
)

// Repository is the storage surface the pipeline needs: the engine's
// read/write view plus batch persistence for incoming articles.
type Repository interface {
	model.Repository
	SaveArticles(articles []model.Article) (int, error)
}

// ResultSink receives coherence results for clusters touched by a batch.
type ResultSink func(coherence.Result)

// Stats are cumulative pipeline counters.
type Stats struct {
	Batches    int64
	Articles   int64
	Matched    int64
	NewEvents  int64
	Unassigned int64
	Conflicts  int64 // coherence results with severity above none
}

// Intake is the bounded entry point for article batches. Producers call
// Submit concurrently; one consumer goroutine runs each batch through
// embedding, clustering, and per-cluster coherence recomputation.
type Intake struct {
	queue     chan []model.Article
	repo      Repository
	embedder  embed.BatchEmbedder
	extractor entity.Extractor
	clusterer *cluster.Clusterer
	engine    *coherence.Engine
	sink      ResultSink

	batches    int64
	articles   int64
	matched    int64
	newEvents  int64
	unassigned int64
	conflicts  int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIntake creates a pipeline with the given queue depth. If depth <= 0
// a default of 64 batches is used. The extractor and sink may be nil.
func NewIntake(depth int, repo Repository, embedder embed.BatchEmbedder, extractor entity.Extractor, clusterer *cluster.Clusterer, engine *coherence.Engine, sink ResultSink) *Intake {
	if depth <= 0 {
		depth = 64
	}
	return &Intake{
		queue:     make(chan []model.Article, depth),
		repo:      repo,
		embedder:  embedder,
		extractor: extractor,
		clusterer: clusterer,
		engine:    engine,
		sink:      sink,
	}
}

// Start launches the consumer goroutine.
func (in *Intake) Start(ctx context.Context) {
	in.ctx, in.cancel = context.WithCancel(ctx)

	in.wg.Add(1)
	go in.consume()

	logging.Info("Pipeline started", "queue_depth", cap(in.queue))
}

// Stop drains the queue and waits for the in-flight batch to finish.
// Submit must not be called after Stop.
func (in *Intake) Stop() {
	close(in.queue)
	in.wg.Wait()
	if in.cancel != nil {
		in.cancel()
	}

	s := in.Stats()
	logging.Info("Pipeline stopped",
		"batches", s.Batches,
		"articles", s.Articles,
		"conflicts", s.Conflicts)
}

// Submit queues a batch for processing. Blocks while the queue is full,
// which is the backpressure signal to producers. Returns false once the
// pipeline is shutting down.
func (in *Intake) Submit(batch []model.Article) bool {
	if len(batch) == 0 {
		return true
	}
	select {
	case in.queue <- batch:
		return true
	case <-in.ctx.Done():
		return false
	}
}

// Stats returns a snapshot of the cumulative counters.
func (in *Intake) Stats() Stats {
	return Stats{
		Batches:    atomic.LoadInt64(&in.batches),
		Articles:   atomic.LoadInt64(&in.articles),
		Matched:    atomic.LoadInt64(&in.matched),
		NewEvents:  atomic.LoadInt64(&in.newEvents),
		Unassigned: atomic.LoadInt64(&in.unassigned),
		Conflicts:  atomic.LoadInt64(&in.conflicts),
	}
}

func (in *Intake) consume() {
	defer in.wg.Done()

	for batch := range in.queue {
		select {
		case <-in.ctx.Done():
			// Drain remaining batches without processing.
			continue
		default:
		}
		in.processBatch(batch)
	}
}

// processBatch runs one batch end to end. Failures are scoped: an
// embedding failure drops the batch, a coherence failure on one cluster
// does not block the others.
func (in *Intake) processBatch(batch []model.Article) {
	atomic.AddInt64(&in.batches, 1)
	atomic.AddInt64(&in.articles, int64(len(batch)))

	for i := range batch {
		if len(batch[i].Entities) == 0 && in.extractor != nil {
			batch[i].Entities = in.extractor.Extract(batch[i].Text())
		}
	}

	if in.repo != nil {
		if _, err := in.repo.SaveArticles(batch); err != nil {
			logging.Error("Article persistence failed", "count", len(batch), "error", err)
			return
		}
	}

	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text()
	}
	embeddings, err := in.embedder.EmbedBatch(in.ctx, texts)
	if err != nil {
		logging.Error("Batch embedding failed", "count", len(batch), "error", err)
		return
	}

	assignments, stats := in.clusterer.ProcessNewArticles(in.ctx, batch, embeddings)
	atomic.AddInt64(&in.matched, int64(stats.Matched))
	atomic.AddInt64(&in.newEvents, int64(stats.NewClusters))
	atomic.AddInt64(&in.unassigned, int64(stats.Unassigned))

	in.recomputeTouched(assignments)
}

// recomputeTouched re-scores every cluster that gained a member this
// batch and forwards the results to the sink.
func (in *Intake) recomputeTouched(assignments map[string]string) {
	if in.engine == nil || in.repo == nil {
		return
	}

	touched := map[string]bool{}
	for _, clusterID := range assignments {
		if clusterID != cluster.Unassigned {
			touched[clusterID] = true
		}
	}

	for clusterID := range touched {
		members, err := in.repo.ArticlesInCluster(clusterID)
		if err != nil {
			logging.Warn("Coherence: member fetch failed", "cluster", clusterID, "error", err)
			continue
		}

		texts := make([]string, len(members))
		for i := range members {
			texts[i] = members[i].Text()
		}
		vecs, err := in.embedder.EmbedBatch(in.ctx, texts)
		if err != nil {
			logging.Warn("Coherence: embedding failed", "cluster", clusterID, "error", err)
			continue
		}

		result := in.engine.Recompute(clusterID, members, vecs)
		if result.Severity != coherence.SeverityNone {
			atomic.AddInt64(&in.conflicts, 1)
		}
		if in.sink != nil {
			in.sink(result)
		}
	}
}
