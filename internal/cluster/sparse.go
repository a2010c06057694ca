// Package cluster implements incremental, anchor-based event clustering
// with a sparse KNN graph fallback for articles that match no known event.
package cluster

import (
	"github.com/briahnloo/source-of-truth/internal/embed"
	"github.com/briahnloo/source-of-truth/internal/logging"
	"github.com/coder/hnsw"
)

// Noise is the label for points that belong to no cluster.
const Noise = -1

// SparseOptions configures the sparse KNN graph clusterer.
type SparseOptions struct {
	K                 int     // neighbors per point in the KNN graph
	DistanceThreshold float64 // max cosine distance for an edge (0.3 = 0.7 similarity)
	MinClusterSize    int     // components below this size are noise
}

// DefaultSparseOptions returns the standard clustering parameters.
func DefaultSparseOptions() SparseOptions {
	return SparseOptions{K: 5, DistanceThreshold: 0.3, MinClusterSize: 3}
}

// SparseCluster groups embeddings into clusters via connected components
// over a sparse k-nearest-neighbor graph.
//
// Instead of materializing the O(n²) pairwise distance matrix, each point
// keeps at most k neighbor edges (those within the distance threshold),
// so memory stays O(n·k). The graph is treated as undirected: if i lists
// j within threshold, i and j are connected even when j's own k-list
// misses i. Which node roots a component's traversal depends on input
// order; membership does not.
//
// Returns one label per embedding: a cluster index starting at 0, or Noise.
func SparseCluster(embeddings [][]float32, opts SparseOptions) (labels []int) {
	if opts.K <= 0 {
		opts.K = 5
	}
	if opts.MinClusterSize <= 0 {
		opts.MinClusterSize = 3
	}

	n := len(embeddings)
	labels = make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}

	// Too few points to form even one cluster.
	if n < opts.MinClusterSize {
		return labels
	}

	// HNSW occasionally panics on degenerate input; a failed batch just
	// leaves these articles unassigned until the next run.
	defer func() {
		if r := recover(); r != nil {
			logging.Error("HNSW panic recovered in SparseCluster", "error", r, "points", n)
			for i := range labels {
				labels[i] = Noise
			}
		}
	}()

	adjacency := buildSparseAdjacency(embeddings, opts)

	// BFS over the sparse adjacency, assigning cluster labels to
	// components that clear the size floor.
	next := 0
	visited := make([]bool, n)
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		component := bfsComponent(adjacency, visited, start)
		if len(component) < opts.MinClusterSize {
			continue // stays Noise
		}
		for _, idx := range component {
			labels[idx] = next
		}
		next++
	}

	logging.Debug("Sparse clustering complete", "points", n, "clusters", next)
	return labels
}

// buildSparseAdjacency builds the per-point neighbor lists via an HNSW
// index with cosine distance. Edges are kept only when the exact cosine
// distance clears the threshold; HNSW is candidate search, not the
// final similarity judge.
func buildSparseAdjacency(embeddings [][]float32, opts SparseOptions) [][]int {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 32

	for i, vec := range embeddings {
		if len(vec) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, vec))
	}

	minSim := float32(1.0 - opts.DistanceThreshold)
	adjacency := make([][]int, len(embeddings))

	for i, vec := range embeddings {
		if len(vec) == 0 {
			continue
		}

		// k+1 because the query point finds itself.
		neighbors := g.Search(vec, opts.K+1)
		for _, nb := range neighbors {
			if nb.Key == i {
				continue
			}
			if embed.CosineSimilarity(vec, embeddings[nb.Key]) < minSim {
				continue
			}
			// Undirected: record the edge on both endpoints.
			adjacency[i] = append(adjacency[i], nb.Key)
			adjacency[nb.Key] = append(adjacency[nb.Key], i)
		}
	}

	return adjacency
}

// bfsComponent walks one connected component and returns its members.
func bfsComponent(adjacency [][]int, visited []bool, start int) []int {
	visited[start] = true
	queue := []int{start}
	var component []int

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)

		for _, nb := range adjacency[node] {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}

	return component
}
