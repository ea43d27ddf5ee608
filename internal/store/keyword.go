package store

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// TextAnalyzerName is the analyzer used for titles, content and queries.
	TextAnalyzerName = "vault_text"

	textField = "text"
)

// keywordDocument is the bleve document for a record.
type keywordDocument struct {
	Text string `json:"text"`
}

// keywordIndex wraps an in-memory bleve index. The Index lock serializes
// access to it.
type keywordIndex struct {
	index   bleve.Index
	mapping *mapping.IndexMappingImpl
}

func newKeywordIndex() (*keywordIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &keywordIndex{index: idx, mapping: indexMapping}, nil
}

// createIndexMapping builds a mapping whose default analyzer splits on
// unicode word boundaries and lowercases. No stemming or stop words.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}

// put indexes or replaces the document for rec.
func (k *keywordIndex) put(rec *Record) error {
	doc := keywordDocument{Text: rec.Title + "\n" + rec.ContentPreview}
	if err := k.index.Index(rec.ID, doc); err != nil {
		return fmt.Errorf("failed to index document %s: %w", rec.ID, err)
	}
	return nil
}

// putAll indexes records in one batch.
func (k *keywordIndex) putAll(recs []*Record) error {
	batch := k.index.NewBatch()
	for _, rec := range recs {
		doc := keywordDocument{Text: rec.Title + "\n" + rec.ContentPreview}
		if err := batch.Index(rec.ID, doc); err != nil {
			return fmt.Errorf("failed to index document %s: %w", rec.ID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func (k *keywordIndex) delete(id string) error {
	if err := k.index.Delete(id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// analyzable reports whether term produces at least one token.
func (k *keywordIndex) analyzable(term string) bool {
	analyzer := k.mapping.AnalyzerNamed(TextAnalyzerName)
	if analyzer == nil {
		return true
	}
	return len(analyzer.Analyze([]byte(term))) > 0
}

// matchTerm returns the score of every document matching term. A term
// that tokenizes into several tokens (e.g. "foo-bar") must match all of
// them. The term is analyzed, never parsed as query syntax.
func (k *keywordIndex) matchTerm(ctx context.Context, term string) (map[string]float64, error) {
	count, err := k.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("doc count: %w", err)
	}
	if count == 0 {
		return map[string]float64{}, nil
	}

	mq := bleve.NewMatchQuery(term)
	mq.SetField(textField)
	mq.SetOperator(query.MatchQueryOperatorAnd)

	req := bleve.NewSearchRequest(mq)
	req.Size = int(count)

	result, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	scores := make(map[string]float64, len(result.Hits))
	for _, hit := range result.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

func (k *keywordIndex) reset() error {
	_ = k.index.Close()
	idx, err := bleve.NewMemOnly(k.mapping)
	if err != nil {
		return fmt.Errorf("failed to recreate keyword index: %w", err)
	}
	k.index = idx
	return nil
}

func (k *keywordIndex) close() error {
	return k.index.Close()
}
