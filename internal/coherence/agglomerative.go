package coherence

import "github.com/briahnloo/source-of-truth/internal/embed"

// agglomerate performs bottom-up hierarchical clustering with average
// cosine linkage, merging the closest pair until targetGroups remain.
// Returns one group label per input vector.
//
// No randomness is involved, but equal-distance merge ties resolve to
// the first pair in scan order, so relabeling inputs can change which
// pair merges first. Membership of the final groups is what callers
// may rely on, not label values.
func agglomerate(embeddings [][]float32, targetGroups int) []int {
	n := len(embeddings)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	if n <= targetGroups {
		return labels
	}

	// Pairwise cosine distances; n is small here (one cluster's members).
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := i + 1; j < n; j++ {
			d := float64(embed.CosineDistance(embeddings[i], embeddings[j]))
			dist[i][j] = d
		}
	}
	pairDist := func(i, j int) float64 {
		if i > j {
			i, j = j, i
		}
		return dist[i][j]
	}

	active := make(map[int][]int, n) // label -> member indices
	for i := 0; i < n; i++ {
		active[i] = []int{i}
	}

	for len(active) > targetGroups {
		bestA, bestB := -1, -1
		bestD := 0.0

		// Average linkage between every pair of active groups.
		labelsOrdered := sortedKeys(active)
		for ai, a := range labelsOrdered {
			for _, b := range labelsOrdered[ai+1:] {
				var sum float64
				for _, i := range active[a] {
					for _, j := range active[b] {
						sum += pairDist(i, j)
					}
				}
				avg := sum / float64(len(active[a])*len(active[b]))
				if bestA == -1 || avg < bestD {
					bestA, bestB, bestD = a, b, avg
				}
			}
		}

		active[bestA] = append(active[bestA], active[bestB]...)
		delete(active, bestB)
	}

	out := make([]int, n)
	for label, indices := range active {
		for _, i := range indices {
			out[i] = label
		}
	}
	return out
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Insertion sort; group counts here are tiny.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
