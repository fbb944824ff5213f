// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval wraps the ranked-search collaborator behind the
// evidence-retrieval contract used by the query pipeline.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

// defaultMaxResults bounds a query when neither the caller nor the
// configuration supplies a limit.
const defaultMaxResults = 5

// Searcher is the ranked full-text search collaborator. The engine's local
// implementation is the SQLite index; a hosted search service satisfies the
// same contract.
type Searcher interface {
	// Search returns ranked evidence snippets for the query, bounded by
	// maxResults, plus the collaborator's full match count.
	Search(ctx context.Context, query string, filters map[string]string, maxResults int) ([]types.EvidenceSnippet, int, error)
}

// Output holds one retrieval's results. Results is bounded by the requested
// maximum; TotalResults reports the collaborator's full match count.
type Output struct {
	Results      []types.EvidenceSnippet `json:"results"`
	TotalResults int                     `json:"total_results"`
}

// Adapter translates query-pipeline retrievals into collaborator calls and
// maps collaborator failures to the recoverable RetrievalError class.
type Adapter struct {
	searcher Searcher
	cfg      types.RetrievalConfig
	log      *logger.Logger
}

// New builds a retrieval adapter.
func New(searcher Searcher, cfg types.RetrievalConfig, log *logger.Logger) *Adapter {
	return &Adapter{searcher: searcher, cfg: cfg, log: log.With("component", "retrieval")}
}

// Retrieve queries the collaborator and returns ranked evidence. Filters
// combine with AND semantics; empty filter values are dropped before the
// call. Results keep the collaborator's ranked order. Any collaborator
// failure, including context expiry, surfaces as a RetrievalError, which
// the orchestrator treats as "no evidence found".
func (a *Adapter) Retrieve(ctx context.Context, query string, filters map[string]string, maxResults int) (Output, error) {
	if strings.TrimSpace(query) == "" {
		return Output{}, &types.RetrievalError{Err: fmt.Errorf("query is empty")}
	}

	if maxResults <= 0 {
		maxResults = a.cfg.MaxResults
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	results, total, err := a.searcher.Search(ctx, query, pruneFilters(filters), maxResults)
	if err != nil {
		return Output{}, &types.RetrievalError{Err: err}
	}

	// The bound is this adapter's contract even if a collaborator
	// over-returns.
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	a.log.Debug("retrieved evidence", "query", query, "returned", len(results), "total", total)
	return Output{Results: results, TotalResults: total}, nil
}

// pruneFilters drops empty-valued keys so they do not participate in the
// compound filter.
func pruneFilters(filters map[string]string) map[string]string {
	if len(filters) == 0 {
		return nil
	}
	pruned := make(map[string]string, len(filters))
	for k, v := range filters {
		if v != "" {
			pruned[k] = v
		}
	}
	return pruned
}
