// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

type mockSearcher struct {
	results    []types.EvidenceSnippet
	total      int
	err        error
	gotQuery   string
	gotFilters map[string]string
	gotMax     int
}

func (m *mockSearcher) Search(_ context.Context, query string, filters map[string]string, maxResults int) ([]types.EvidenceSnippet, int, error) {
	m.gotQuery = query
	m.gotFilters = filters
	m.gotMax = maxResults
	return m.results, m.total, m.err
}

func snippets(ids ...string) []types.EvidenceSnippet {
	var out []types.EvidenceSnippet
	for _, id := range ids {
		out = append(out, types.EvidenceSnippet{ID: id, Title: "Doc " + id})
	}
	return out
}

func TestRetrieve_RankedOrderPreserved(t *testing.T) {
	searcher := &mockSearcher{results: snippets("c", "a", "b"), total: 3}
	a := New(searcher, types.RetrievalConfig{}, logger.NewNop())

	out, err := a.Retrieve(context.Background(), "blood test", nil, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	want := []string{"c", "a", "b"}
	for i, s := range out.Results {
		if s.ID != want[i] {
			t.Errorf("result %d = %s, want %s", i, s.ID, want[i])
		}
	}
	if out.TotalResults != 3 {
		t.Errorf("TotalResults = %d, want 3", out.TotalResults)
	}
}

func TestRetrieve_BoundsResultsNotTotal(t *testing.T) {
	searcher := &mockSearcher{results: snippets("a", "b", "c", "d"), total: 40}
	a := New(searcher, types.RetrievalConfig{}, logger.NewNop())

	out, err := a.Retrieve(context.Background(), "blood test", nil, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(out.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(out.Results))
	}
	if out.TotalResults != 40 {
		t.Errorf("TotalResults = %d, want 40", out.TotalResults)
	}
}

func TestRetrieve_DefaultMaxResults(t *testing.T) {
	tests := []struct {
		name    string
		cfgMax  int
		askMax  int
		wantMax int
	}{
		{"caller wins", 10, 3, 3},
		{"config fallback", 10, 0, 10},
		{"built-in fallback", 0, 0, defaultMaxResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &mockSearcher{}
			a := New(searcher, types.RetrievalConfig{MaxResults: tt.cfgMax}, logger.NewNop())
			if _, err := a.Retrieve(context.Background(), "q", nil, tt.askMax); err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if searcher.gotMax != tt.wantMax {
				t.Errorf("maxResults passed = %d, want %d", searcher.gotMax, tt.wantMax)
			}
		})
	}
}

func TestRetrieve_EmptyFilterValuesDropped(t *testing.T) {
	searcher := &mockSearcher{}
	a := New(searcher, types.RetrievalConfig{}, logger.NewNop())

	_, err := a.Retrieve(context.Background(), "q", map[string]string{
		types.FilterPatientName: "patient-1",
		types.FilterDocumentID:  "",
	}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(searcher.gotFilters) != 1 || searcher.gotFilters[types.FilterPatientName] != "patient-1" {
		t.Errorf("filters passed = %v", searcher.gotFilters)
	}
}

func TestRetrieve_CollaboratorErrorIsRetrievalError(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("index offline")}
	a := New(searcher, types.RetrievalConfig{}, logger.NewNop())

	_, err := a.Retrieve(context.Background(), "q", nil, 5)
	var rerr *types.RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
}

func TestRetrieve_EmptyQueryRejected(t *testing.T) {
	a := New(&mockSearcher{}, types.RetrievalConfig{}, logger.NewNop())

	_, err := a.Retrieve(context.Background(), "   ", nil, 5)
	var rerr *types.RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
}
