// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medassist-engine/internal/extract"
	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/internal/session"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

type mockExtractor struct {
	result extract.Result
	err    error

	gotContent   []byte
	gotSourceRef string
}

func (m *mockExtractor) Extract(_ context.Context, content []byte, sourceRef string) (extract.Result, error) {
	m.gotContent = content
	m.gotSourceRef = sourceRef
	return m.result, m.err
}

type mockIndexer struct {
	err    error
	gotDoc types.Document
}

func (m *mockIndexer) PutDocument(_ context.Context, doc types.Document) error {
	m.gotDoc = doc
	return m.err
}

type mockRunner struct {
	result   session.Result
	err      error
	gotInput session.Input
}

func (m *mockRunner) ProcessTurn(_ context.Context, input session.Input) (session.Result, error) {
	m.gotInput = input
	return m.result, m.err
}

type mockSessions struct {
	sessions []types.Session
	turns    []types.ConversationTurn
	err      error

	deleted string
	patched *session.Patch
}

func (m *mockSessions) CreateSession(_ context.Context, userID, title string) (types.Session, error) {
	if m.err != nil {
		return types.Session{}, m.err
	}
	return types.Session{ID: "sess-1", UserID: userID, Title: title}, nil
}

func (m *mockSessions) ListSessions(_ context.Context, _ string) ([]types.Session, error) {
	return m.sessions, m.err
}

func (m *mockSessions) ListTurns(_ context.Context, _, _ string, _ int) ([]types.ConversationTurn, error) {
	return m.turns, m.err
}

func (m *mockSessions) UpdateSession(_ context.Context, _, _ string, patch session.Patch) error {
	m.patched = &patch
	return m.err
}

func (m *mockSessions) DeleteSession(_ context.Context, _, sessionID string) error {
	m.deleted = sessionID
	return m.err
}

type testServer struct {
	*Server
	extractor *mockExtractor
	indexer   *mockIndexer
	runner    *mockRunner
	sessions  *mockSessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		extractor: &mockExtractor{},
		indexer:   &mockIndexer{},
		runner:    &mockRunner{},
		sessions:  &mockSessions{},
	}
	ts.Server = New(ts.extractor, ts.indexer, ts.runner, ts.sessions, types.ServerConfig{}, logger.NewNop())
	return ts
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthcheck(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts.Server, http.MethodGet, "/healthcheck", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestIngestPipeline(t *testing.T) {
	ts := newTestServer(t)
	ts.extractor.result = extract.Result{
		Text:       "CBC Panel results. Hemoglobin 14.2 g/dL.",
		Confidence: 97.5,
		Entities:   []types.MedicalEntity{{Text: "Hemoglobin", Category: "TEST_TREATMENT_PROCEDURE", Score: 0.94}},
	}

	content := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake"))
	rec := doJSON(t, ts.Server, http.MethodPost, "/api/documents", gin.H{
		"content":   content,
		"sourceRef": "s3://bucket/cbc.pdf",
		"title":     "Lab Report — CBC Panel",
		"patientId": "patient-7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["documentId"])
	assert.Equal(t, "lab-report", body["documentType"])
	assert.Equal(t, 97.5, body["confidence"])

	assert.Equal(t, []byte("%PDF-1.4 fake"), ts.extractor.gotContent)
	assert.Equal(t, "s3://bucket/cbc.pdf", ts.extractor.gotSourceRef)
	assert.Equal(t, "patient-7", ts.indexer.gotDoc.PatientID)
	assert.Equal(t, types.DocLabReport, ts.indexer.gotDoc.DocumentType)
}

func TestIngestExtractionFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.extractor.err = &types.ExtractionError{Err: errors.New("analyzer unreachable")}

	rec := doJSON(t, ts.Server, http.MethodPost, "/api/documents", gin.H{
		"content": base64.StdEncoding.EncodeToString([]byte("doc")),
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "extraction_failed", body["error"])
	assert.Contains(t, body["message"], "analyzer unreachable")
}

func TestIngestRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := doJSON(t, ts.Server, http.MethodPost, "/api/documents", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, ts.Server, http.MethodPost, "/api/documents", gin.H{"content": "not-base64!!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryReturnsCanonicalEnvelope(t *testing.T) {
	ts := newTestServer(t)
	elapsed := int64(350)
	score := 0.9
	ts.runner.result = session.Result{QueryResult: types.QueryResult{
		Answer:           "Your cholesterol is slightly elevated.",
		Sources:          []string{"Lab_Results.pdf"},
		FileReferences:   []types.FileReference{{ID: "doc-1", Name: "Lab_Results.pdf"}},
		QueryType:        types.QueryDocument,
		ProcessingTimeMs: &elapsed,
		ConfidenceScore:  &score,
		SessionID:        "sess-1",
	}}

	rec := doJSON(t, ts.Server, http.MethodPost, "/api/query", gin.H{
		"query":     "What does my lipid panel show?",
		"filters":   gin.H{"documentName": "Lab_Results.pdf", "dateFrom": "2026-01-01"},
		"sessionId": "sess-1",
		"userId":    "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Your cholesterol is slightly elevated.", body["answer"])
	assert.Equal(t, "document_query", body["queryType"])
	assert.Equal(t, "sess-1", body["sessionId"])

	assert.Equal(t, "What does my lipid panel show?", ts.runner.gotInput.Query)
	assert.Equal(t, map[string]string{
		types.FilterDocumentName: "Lab_Results.pdf",
		types.FilterDateFrom:     "2026-01-01",
	}, ts.runner.gotInput.Filters)
	assert.Equal(t, "user-1", ts.runner.gotInput.UserID)
}

func TestQueryRequiresQueryText(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts.Server, http.MethodPost, "/api/query", gin.H{"query": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestQueryRunnerFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.runner.err = fmt.Errorf("session store write failed")

	rec := doJSON(t, ts.Server, http.MethodPost, "/api/query", gin.H{"query": "q"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "query_failed", body["error"])
}

func TestSessionRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.sessions.sessions = []types.Session{{ID: "sess-1", UserID: "user-1", Title: "t"}}
	ts.sessions.turns = []types.ConversationTurn{{SessionID: "sess-1", TurnID: "turn-1"}}

	rec := doJSON(t, ts.Server, http.MethodPost, "/api/sessions", gin.H{"userId": "user-1", "title": "notes"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ts.Server, http.MethodGet, "/api/sessions?userId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["sessions"], 1)

	rec = doJSON(t, ts.Server, http.MethodGet, "/api/sessions/sess-1/turns?userId=user-1&limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["turns"], 1)

	rec = doJSON(t, ts.Server, http.MethodPatch, "/api/sessions/sess-1", gin.H{"userId": "user-1", "title": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ts.sessions.patched)
	assert.Equal(t, "renamed", *ts.sessions.patched.Title)

	rec = doJSON(t, ts.Server, http.MethodDelete, "/api/sessions/sess-1?userId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", ts.sessions.deleted)
}

func TestUpdateSessionOmittedTitleLeftUnchanged(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
	}{
		{name: "title absent", body: gin.H{"userId": "user-1"}},
		{name: "title empty", body: gin.H{"userId": "user-1", "title": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := doJSON(t, ts.Server, http.MethodPatch, "/api/sessions/sess-1", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, ts.sessions.patched)
			assert.Nil(t, ts.sessions.patched.Title)
		})
	}
}

func TestSessionRoutesRequireUserID(t *testing.T) {
	ts := newTestServer(t)
	rec := doJSON(t, ts.Server, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionRoutesWithoutStore(t *testing.T) {
	ts := newTestServer(t)
	srv := New(ts.extractor, ts.indexer, ts.runner, nil, types.ServerConfig{}, logger.NewNop())

	rec := doJSON(t, srv, http.MethodGet, "/api/sessions?userId=user-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
