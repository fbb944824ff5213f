// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdiddy/medassist-engine/internal/extract"
	"github.com/pdiddy/medassist-engine/internal/session"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

type ingestRequest struct {
	Content   string `json:"content"`
	SourceRef string `json:"sourceRef"`
	Title     string `json:"title"`
	PatientID string `json:"patientId"`
}

type queryFilters struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	PatientName  string `json:"patientName"`
	DateFrom     string `json:"dateFrom"`
	DateTo       string `json:"dateTo"`
}

type queryRequest struct {
	Query     string       `json:"query"`
	Filters   queryFilters `json:"filters"`
	SessionID string       `json:"sessionId"`
	UserID    string       `json:"userId"`
}

type sessionRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

type sessionUpdateRequest struct {
	UserID string  `json:"userId"`
	Title  *string `json:"title"`
}

func (s *Server) handleHealthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleIngest runs the ingestion pipeline: decode, extract, classify,
// index.
func (s *Server) handleIngest(c *gin.Context) {
	started := time.Now()

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Content == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", "content is not valid base64")
		return
	}

	sourceRef := req.SourceRef
	if sourceRef == "" {
		sourceRef = req.Title
	}

	result, err := s.extractor.Extract(c.Request.Context(), content, sourceRef)
	if err != nil {
		s.log.Error("extraction failed", "source_ref", sourceRef, "error", err)
		fail(c, http.StatusInternalServerError, "extraction_failed", err.Error())
		return
	}

	doc := types.Document{
		ID:             uuid.NewString(),
		Title:          req.Title,
		ExtractedText:  result.Text,
		Entities:       result.Entities,
		SourceLocation: req.SourceRef,
		PatientID:      req.PatientID,
		UploadedAt:     started.UTC(),
		DocumentType:   extract.ClassifyDocument(req.Title, result.Text),
	}
	if err := s.indexer.PutDocument(c.Request.Context(), doc); err != nil {
		s.log.Error("indexing failed", "document_id", doc.ID, "error", err)
		fail(c, http.StatusInternalServerError, "indexing_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"documentId":       doc.ID,
		"extractedText":    result.Text,
		"medicalEntities":  result.Entities,
		"confidence":       result.Confidence,
		"processingTimeMs": time.Since(started).Milliseconds(),
		"documentType":     doc.DocumentType,
	})
}

// handleQuery runs one conversational turn.
func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Query == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	result, err := s.runner.ProcessTurn(c.Request.Context(), session.Input{
		Query:     req.Query,
		Filters:   req.Filters.toFilterMap(),
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		s.log.Error("query turn failed", "error", err)
		fail(c, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"answer":           result.Answer,
		"sources":          result.Sources,
		"fileReferences":   result.FileReferences,
		"queryType":        result.QueryType,
		"processingTimeMs": result.ProcessingTimeMs,
		"confidenceScore":  result.ConfidenceScore,
		"sessionId":        result.SessionID,
		"errorMessage":     result.ErrorMessage,
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	store, ok := s.sessionStore(c)
	if !ok {
		return
	}

	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.UserID == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}

	created, err := store.CreateSession(c.Request.Context(), req.UserID, req.Title)
	if err != nil {
		fail(c, http.StatusInternalServerError, "session_create_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": created})
}

func (s *Server) handleListSessions(c *gin.Context) {
	store, ok := s.sessionStore(c)
	if !ok {
		return
	}

	userID := c.Query("userId")
	if userID == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}

	sessions, err := store.ListSessions(c.Request.Context(), userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "session_list_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (s *Server) handleListTurns(c *gin.Context) {
	store, ok := s.sessionStore(c)
	if !ok {
		return
	}

	userID := c.Query("userId")
	if userID == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			fail(c, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	turns, err := store.ListTurns(c.Request.Context(), userID, c.Param("id"), limit)
	if err != nil {
		fail(c, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "turns": turns})
}

func (s *Server) handleUpdateSession(c *gin.Context) {
	store, ok := s.sessionStore(c)
	if !ok {
		return
	}

	var req sessionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.UserID == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}

	// An absent or empty title leaves the stored title unchanged.
	var patch session.Patch
	if req.Title != nil && *req.Title != "" {
		patch.Title = req.Title
	}

	err := store.UpdateSession(c.Request.Context(), req.UserID, c.Param("id"), patch)
	if err != nil {
		fail(c, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	store, ok := s.sessionStore(c)
	if !ok {
		return
	}

	userID := c.Query("userId")
	if userID == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}

	if err := store.DeleteSession(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, http.StatusInternalServerError, "session_delete_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// sessionStore fetches the configured store or answers 503.
func (s *Server) sessionStore(c *gin.Context) (SessionStore, bool) {
	if s.sessions == nil {
		fail(c, http.StatusServiceUnavailable, "sessions_unavailable", "session persistence is not configured")
		return nil, false
	}
	return s.sessions, true
}

// fail writes the error envelope every entry point shares.
func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"success": false, "error": code, "message": message})
}

// toFilterMap maps the wire filter names onto the retrieval filter keys.
func (f queryFilters) toFilterMap() map[string]string {
	filters := make(map[string]string)
	put := func(key, value string) {
		if value != "" {
			filters[key] = value
		}
	}
	put(types.FilterDocumentID, f.DocumentID)
	put(types.FilterDocumentName, f.DocumentName)
	put(types.FilterPatientName, f.PatientName)
	put(types.FilterDateFrom, f.DateFrom)
	put(types.FilterDateTo, f.DateTo)
	if len(filters) == 0 {
		return nil
	}
	return filters
}
