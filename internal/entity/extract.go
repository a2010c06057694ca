// Package entity provides the cheap on-the-fly entity extraction used
// when articles arrive without stored entities, plus bias lookup helpers.
package entity

import (
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/briahnloo/source-of-truth/internal/logging"
)

// Extractor extracts named entities from article text.
type Extractor interface {
	Extract(text string) []string
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(text string) []string

func (f ExtractorFunc) Extract(text string) []string { return f(text) }

// ProseExtractor performs local NER with the prose NLP library.
// No network, no model download; accuracy is rough but it only backs up
// the stored extraction, it does not replace it.
type ProseExtractor struct{}

// NewProseExtractor creates a prose-based entity extractor.
func NewProseExtractor() *ProseExtractor {
	return &ProseExtractor{}
}

// Extract returns deduplicated entity strings found in the text.
// Extraction failure degrades to an empty set, never an error.
func (e *ProseExtractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		logging.Debug("Entity extraction failed", "error", err)
		return nil
	}

	seen := make(map[string]bool)
	var entities []string
	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, name)
	}

	return entities
}
