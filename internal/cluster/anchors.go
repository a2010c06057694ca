package cluster

import (
	"sync"
	"time"

	"github.com/briahnloo/source-of-truth/internal/embed"
	"github.com/briahnloo/source-of-truth/internal/logging"
)

// Anchor is the stored representative for one known event cluster.
// The embedding is the cluster's medoid member, not a centroid: it is an
// actual member vector, robust to outliers, and needs no extra storage.
type Anchor struct {
	ClusterID   string    `json:"clusterId"`
	Embedding   []float32 `json:"embedding"`
	MemberCount int       `json:"memberCount"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// AnchorPersister stores and loads the whole anchor set. Implemented by
// internal/store; persistence failures must never crash a run.
type AnchorPersister interface {
	SaveAnchors(anchors []Anchor) error
	LoadAnchors() ([]Anchor, error)
}

// AnchorStore holds one anchor per known cluster, guarded by a single
// writer lock since parallel batches may upsert concurrently.
type AnchorStore struct {
	mu        sync.RWMutex
	anchors   map[string]*Anchor
	persister AnchorPersister
}

// NewAnchorStore creates an empty anchor store.
// Pass a nil persister for a purely in-memory store (tests).
func NewAnchorStore(persister AnchorPersister) *AnchorStore {
	return &AnchorStore{
		anchors:   make(map[string]*Anchor),
		persister: persister,
	}
}

// Load replaces the in-memory set with the persisted one. A missing or
// corrupt store is not fatal: the store starts empty and logs the
// condition, and incremental clustering rebuilds anchors over time.
func (s *AnchorStore) Load() {
	if s.persister == nil {
		return
	}

	anchors, err := s.persister.LoadAnchors()
	if err != nil {
		logging.Warn("Anchor store load failed, starting empty", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors = make(map[string]*Anchor, len(anchors))
	for i := range anchors {
		a := anchors[i]
		s.anchors[a.ClusterID] = &a
	}
	logging.Info("Anchor store loaded", "anchors", len(anchors))
}

// Persist writes the whole anchor set through the persister.
func (s *AnchorStore) Persist() error {
	if s.persister == nil {
		return nil
	}

	s.mu.RLock()
	anchors := make([]Anchor, 0, len(s.anchors))
	for _, a := range s.anchors {
		anchors = append(anchors, *a)
	}
	s.mu.RUnlock()

	return s.persister.SaveAnchors(anchors)
}

// BestMatch returns the cluster whose anchor is most similar to the query
// embedding, if that similarity clears the threshold.
//
// When two anchors tie exactly, whichever the map iteration reaches first
// wins. That order is not guaranteed and callers must not rely on it.
func (s *AnchorStore) BestMatch(embedding []float32, threshold float64) (clusterID string, similarity float32, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := float32(-1)
	for id, anchor := range s.anchors {
		sim := embed.CosineSimilarity(embedding, anchor.Embedding)
		if sim > best {
			best = sim
			clusterID = id
		}
	}

	if clusterID == "" || float64(best) < threshold {
		return "", 0, false
	}
	return clusterID, best, true
}

// Upsert creates or replaces the anchor for a cluster.
func (s *AnchorStore) Upsert(clusterID string, embedding []float32, memberCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anchors[clusterID] = &Anchor{
		ClusterID:   clusterID,
		Embedding:   embedding,
		MemberCount: memberCount,
		LastUpdated: time.Now(),
	}
}

// AddMember bumps a cluster's member count without touching its anchor
// embedding. Anchor embeddings only move on recluster passes.
func (s *AnchorStore) AddMember(clusterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.anchors[clusterID]; ok {
		a.MemberCount++
		a.LastUpdated = time.Now()
	}
}

// Get returns a copy of the anchor for a cluster.
func (s *AnchorStore) Get(clusterID string) (Anchor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.anchors[clusterID]
	if !ok {
		return Anchor{}, false
	}
	return *a, true
}

// ClusterIDs returns the ids of all known clusters.
func (s *AnchorStore) ClusterIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.anchors))
	for id := range s.anchors {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of known clusters.
func (s *AnchorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.anchors)
}

// Medoid returns the index of the member embedding with the highest mean
// similarity to all other members, or -1 for empty input. For a single
// member the medoid is that member.
func Medoid(embeddings [][]float32) int {
	n := len(embeddings)
	if n == 0 {
		return -1
	}
	if n == 1 {
		return 0
	}

	best := -1
	bestMean := float32(-2)
	for i := 0; i < n; i++ {
		var sum float32
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sum += embed.CosineSimilarity(embeddings[i], embeddings[j])
		}
		mean := sum / float32(n-1)
		if mean > bestMean {
			bestMean = mean
			best = i
		}
	}
	return best
}
