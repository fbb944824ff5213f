// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the engine's two entry points, ingestion and
// query, plus session management, over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/medassist-engine/internal/extract"
	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/internal/session"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

// Extractor is the document text-and-entities pipeline.
type Extractor interface {
	Extract(ctx context.Context, content []byte, sourceRef string) (extract.Result, error)
}

// Indexer receives extracted documents for retrieval.
type Indexer interface {
	PutDocument(ctx context.Context, doc types.Document) error
}

// QueryRunner drives one conversational turn.
type QueryRunner interface {
	ProcessTurn(ctx context.Context, input session.Input) (session.Result, error)
}

// SessionStore is the session-management surface exposed over HTTP.
type SessionStore interface {
	CreateSession(ctx context.Context, userID, title string) (types.Session, error)
	ListSessions(ctx context.Context, userID string) ([]types.Session, error)
	ListTurns(ctx context.Context, userID, sessionID string, limit int) ([]types.ConversationTurn, error)
	UpdateSession(ctx context.Context, userID, sessionID string, patch session.Patch) error
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// Server wires the engine components behind the HTTP API.
type Server struct {
	extractor Extractor
	indexer   Indexer
	runner    QueryRunner
	sessions  SessionStore
	cfg       types.ServerConfig
	log       *logger.Logger
}

// New builds a server. sessions may be nil, in which case the session
// routes respond 503.
func New(extractor Extractor, indexer Indexer, runner QueryRunner, sessions SessionStore, cfg types.ServerConfig, log *logger.Logger) *Server {
	return &Server{
		extractor: extractor,
		indexer:   indexer,
		runner:    runner,
		sessions:  sessions,
		cfg:       cfg,
		log:       log.With("component", "server"),
	}
}

// Run serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request with zap fields.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
