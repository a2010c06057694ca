// Package model defines the domain types shared across the clustering
// and coherence engine.
package model

import "time"

// Article represents a single ingested news article.
// The engine reads articles and writes back a cluster assignment;
// everything else is owned by ingestion.
type Article struct {
	ID        string
	Source    string // source domain, e.g. "reuters.com"
	Title     string
	Summary   string
	Published time.Time
	Language  string
	Entities  []string // extracted entity strings, may be empty
	ClusterID string   // empty = unassigned
}

// Text returns the text used for embedding and extraction.
func (a *Article) Text() string {
	if a.Summary == "" {
		return a.Title
	}
	return a.Title + " " + a.Summary
}

// Repository provides article access for the engine.
type Repository interface {
	// ArticlesInCluster returns all articles assigned to a cluster.
	ArticlesInCluster(clusterID string) ([]Article, error)

	// ArticlesSince returns articles published after the cutoff.
	ArticlesSince(cutoff time.Time) ([]Article, error)

	// AssignCluster writes a cluster assignment back to an article.
	AssignCluster(articleID, clusterID string) error
}
