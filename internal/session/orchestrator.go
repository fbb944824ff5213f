// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"time"

	"github.com/pdiddy/medassist-engine/internal/assemble"
	"github.com/pdiddy/medassist-engine/internal/generate"
	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/internal/normalize"
	"github.com/pdiddy/medassist-engine/internal/retrieval"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

// FallbackErrorAnswer is the fixed answer substituted when generation fails
// after its internal retries.
const FallbackErrorAnswer = "I apologize, but I was unable to process your medical query at this time. Please try again."

// historyTurns is how many prior turns of the session flow into the prompt.
const historyTurns = 3

// confidenceValues maps snippet relevance labels onto the numeric scale the
// canonical result reports when the backend supplies no score of its own.
var confidenceValues = map[types.ConfidenceLabel]float64{
	types.ConfidenceVeryHigh: 0.95,
	types.ConfidenceHigh:     0.85,
	types.ConfidenceMedium:   0.7,
	types.ConfidenceLow:      0.5,
}

// documentScopeKeys are the filter keys that scope a query to particular
// documents and so classify it as a document query.
var documentScopeKeys = []string{
	types.FilterDocumentID,
	types.FilterDocumentName,
	types.FilterPatientName,
	types.FilterPatientID,
}

// Retriever is the evidence-retrieval collaborator.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filters map[string]string, maxResults int) (retrieval.Output, error)
}

// Generator is the model-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts generate.Options) ([]byte, error)
}

// TurnStore is the persistence collaborator the orchestrator drives when
// configured. *Store satisfies it.
type TurnStore interface {
	CreateSession(ctx context.Context, userID, title string) (types.Session, error)
	AppendTurn(ctx context.Context, userID, sessionID string, query types.TurnQuery, response types.TurnResponse) (types.ConversationTurn, error)
	ListTurns(ctx context.Context, userID, sessionID string, limit int) ([]types.ConversationTurn, error)
}

// Input is one conversational turn request.
type Input struct {
	Query string

	// Filters are caller-supplied retrieval filters.
	Filters map[string]string

	// DocumentScope pins the turn to particular documents. Its keys win
	// over Filters on collision and force document_query classification.
	DocumentScope map[string]string

	SessionID string
	UserID    string
}

// Result is the canonical query result plus the underlying error message
// when the turn fell back to the error path.
type Result struct {
	types.QueryResult
	ErrorMessage string `json:"error_message,omitempty"`
}

// Orchestrator sequences one conversational turn: retrieve, assemble,
// generate, normalize. It holds no cross-call state; concurrent turns are
// independent.
type Orchestrator struct {
	retriever Retriever
	generator Generator
	store     TurnStore
	log       *logger.Logger

	now func() time.Time
}

// NewOrchestrator builds a turn orchestrator. store may be nil, in which
// case turns are not persisted.
func NewOrchestrator(retriever Retriever, generator Generator, store TurnStore, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		generator: generator,
		store:     store,
		log:       log.With("component", "session"),
		now:       time.Now,
	}
}

// ProcessTurn runs one turn end-to-end and returns the canonical result.
// Retrieval failure degrades to empty evidence; generation failure degrades
// to a fixed error result carrying the underlying message. The returned
// error is reserved for persistence faults.
func (o *Orchestrator) ProcessTurn(ctx context.Context, input Input) (Result, error) {
	started := o.now()

	filters := mergeFilters(input.Filters, input.DocumentScope)
	queryType := classify(filters)

	sessionID, history := o.resolveSession(ctx, &input)

	evidence := o.retrieve(ctx, input.Query, filters)

	assembled := assemble.BuildContext(evidence, history, input.Query)

	raw, err := o.generator.Generate(ctx, assembled.PromptText, generate.Options{
		SessionID: sessionID,
		Filters:   filters,
	})
	if err != nil {
		o.log.Error("generation failed", "session_id", sessionID, "error", err)
		return o.finish(ctx, input, sessionID, started, errorResult(err), nil)
	}

	normalized, err := normalize.Normalize(raw)
	if err != nil {
		o.log.Error("normalization failed", "session_id", sessionID, "error", err)
		return o.finish(ctx, input, sessionID, started, errorResult(err), nil)
	}

	normalized.QueryType = queryType
	if normalized.ConfidenceScore == nil {
		normalized.ConfidenceScore = meanConfidence(evidence)
	}
	return o.finish(ctx, input, sessionID, started, Result{QueryResult: normalized}, evidence)
}

// resolveSession determines the session id for the turn, creating a session
// when persistence is configured and none was supplied, and loads the recent
// history. Store faults degrade to a stateless turn.
func (o *Orchestrator) resolveSession(ctx context.Context, input *Input) (string, []types.ConversationTurn) {
	if o.store == nil || input.UserID == "" {
		return input.SessionID, nil
	}

	if input.SessionID == "" {
		session, err := o.store.CreateSession(ctx, input.UserID, "")
		if err != nil {
			o.log.Warn("creating session failed, processing statelessly", "error", err)
			return "", nil
		}
		return session.ID, nil
	}

	history, err := o.store.ListTurns(ctx, input.UserID, input.SessionID, historyTurns)
	if err != nil {
		o.log.Warn("loading session history failed, processing without it",
			"session_id", input.SessionID, "error", err)
		return input.SessionID, nil
	}
	return input.SessionID, history
}

// retrieve calls the retrieval collaborator, degrading any failure to an
// empty evidence list.
func (o *Orchestrator) retrieve(ctx context.Context, query string, filters map[string]string) []types.EvidenceSnippet {
	out, err := o.retriever.Retrieve(ctx, query, filters, 0)
	if err != nil {
		o.log.Warn("retrieval failed, continuing with no evidence", "error", err)
		return nil
	}
	return out.Results
}

// finish stamps the result and persists the turn when a store is configured.
func (o *Orchestrator) finish(ctx context.Context, input Input, sessionID string, started time.Time, result Result, evidence []types.EvidenceSnippet) (Result, error) {
	elapsed := o.now().Sub(started).Milliseconds()
	result.ProcessingTimeMs = &elapsed
	result.SessionID = sessionID
	if result.QueryType != types.QueryError && len(evidence) > 0 {
		if len(result.Sources) == 0 {
			result.Sources = sourcesFromEvidence(evidence)
		}
		if len(result.FileReferences) == 0 {
			result.FileReferences = referencesFromEvidence(evidence)
		}
	}

	if o.store != nil && input.UserID != "" && sessionID != "" {
		_, err := o.store.AppendTurn(ctx, input.UserID, sessionID,
			types.TurnQuery{Text: input.Query, Timestamp: started.UTC()},
			types.TurnResponse{
				Text:             result.Answer,
				Timestamp:        o.now().UTC(),
				Sources:          result.Sources,
				FileReferences:   result.FileReferences,
				QueryType:        result.QueryType,
				ProcessingTimeMs: result.ProcessingTimeMs,
				ConfidenceScore:  result.ConfidenceScore,
			})
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// mergeFilters combines caller filters with the document scope; the scope
// wins on key collision.
func mergeFilters(filters, scope map[string]string) map[string]string {
	if len(filters) == 0 && len(scope) == 0 {
		return nil
	}
	merged := make(map[string]string, len(filters)+len(scope))
	for k, v := range filters {
		merged[k] = v
	}
	for k, v := range scope {
		merged[k] = v
	}
	return merged
}

// classify labels the turn document_query when any document-scope filter is
// present, general otherwise.
func classify(filters map[string]string) types.QueryType {
	for _, key := range documentScopeKeys {
		if filters[key] != "" {
			return types.QueryDocument
		}
	}
	return types.QueryGeneral
}

// errorResult is the deterministic fallback for a failed turn.
func errorResult(err error) Result {
	return Result{
		QueryResult: types.QueryResult{
			Answer:         FallbackErrorAnswer,
			Sources:        []string{},
			FileReferences: []types.FileReference{},
			QueryType:      types.QueryError,
		},
		ErrorMessage: err.Error(),
	}
}

// meanConfidence averages the evidence relevance labels onto the numeric
// confidence scale. Returns nil when there is no evidence.
func meanConfidence(evidence []types.EvidenceSnippet) *float64 {
	if len(evidence) == 0 {
		return nil
	}
	var sum float64
	for _, snippet := range evidence {
		sum += confidenceValues[snippet.Confidence]
	}
	mean := sum / float64(len(evidence))
	return &mean
}

// sourcesFromEvidence lists the retrieved document titles, deduplicated in
// first-seen order, for backends whose payload names no sources.
func sourcesFromEvidence(evidence []types.EvidenceSnippet) []string {
	seen := make(map[string]bool, len(evidence))
	sources := make([]string, 0, len(evidence))
	for _, snippet := range evidence {
		if snippet.Title == "" || seen[snippet.Title] {
			continue
		}
		seen[snippet.Title] = true
		sources = append(sources, snippet.Title)
	}
	return sources
}

// referencesFromEvidence carries the retrieved snippets into the result's
// file references when the backend supplied none.
func referencesFromEvidence(evidence []types.EvidenceSnippet) []types.FileReference {
	refs := make([]types.FileReference, 0, len(evidence))
	for _, snippet := range evidence {
		refs = append(refs, types.FileReference{
			ID:         snippet.ID,
			Name:       snippet.Title,
			Excerpt:    snippet.Excerpt,
			Confidence: string(snippet.Confidence),
			URL:        snippet.SourceURI,
		})
	}
	return refs
}
