// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pdiddy/medassist-engine/internal/extract"
	"github.com/pdiddy/medassist-engine/internal/generate"
	"github.com/pdiddy/medassist-engine/internal/index"
	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/internal/retrieval"
	"github.com/pdiddy/medassist-engine/internal/secrets"
	"github.com/pdiddy/medassist-engine/internal/session"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

// engine bundles the wired components behind one lifecycle.
type engine struct {
	cfg          types.Config
	log          *logger.Logger
	extractor    *extract.Adapter
	index        *index.Store
	sessions     *session.Store
	orchestrator *session.Orchestrator
}

// loadConfig assembles the engine configuration from viper, with secrets
// filling in API keys the file leaves empty.
func loadConfig() types.Config {
	cfg := types.Config{
		Extraction: types.ExtractionConfig{
			AnalyzerEndpoint: viper.GetString("extraction.analyzer_endpoint"),
			DetectorEndpoint: viper.GetString("extraction.detector_endpoint"),
			APIKey:           viper.GetString("extraction.api_key"),
		},
		Retrieval: types.RetrievalConfig{
			IndexID:    viper.GetString("retrieval.index_id"),
			MaxResults: viper.GetInt("retrieval.max_results"),
		},
		Generation: types.GenerationConfig{
			Backend:     viper.GetString("generation.backend"),
			Endpoint:    viper.GetString("generation.endpoint"),
			Model:       viper.GetString("generation.model"),
			APIKey:      viper.GetString("generation.api_key"),
			MaxRetries:  viper.GetInt("generation.max_retries"),
			BaseDelayMs: viper.GetInt("generation.base_delay_ms"),
			MaxDelayMs:  viper.GetInt("generation.max_delay_ms"),
			TimeoutMs:   viper.GetInt("generation.timeout_ms"),
		},
		Index: types.IndexConfig{
			DataDir: viper.GetString("index.data_dir"),
		},
		Session: types.SessionConfig{
			DataDir: viper.GetString("session.data_dir"),
		},
		Server: types.ServerConfig{
			Addr:           viper.GetString("server.addr"),
			AllowedOrigins: viper.GetStringSlice("server.allowed_origins"),
			LogMode:        viper.GetString("server.log_mode"),
		},
	}

	cfg.Extraction.APIKey = secrets.Get(loadedSecrets, "analyzer-api-key", cfg.Extraction.APIKey)
	cfg.Generation.APIKey = secrets.Get(loadedSecrets, "anthropic-api-key", cfg.Generation.APIKey)
	return cfg
}

// newEngine wires the full pipeline. Callers must Close it.
func newEngine() (*engine, error) {
	cfg := loadConfig()

	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	indexStore, err := index.NewStore(cfg.Index, cfg.Retrieval.IndexID)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	sessionStore, err := session.NewStore(cfg.Session)
	if err != nil {
		indexStore.Close()
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	backend, err := generationBackend(cfg.Generation)
	if err != nil {
		indexStore.Close()
		sessionStore.Close()
		return nil, err
	}

	retriever := retrieval.New(indexStore, cfg.Retrieval, log)
	generator := generate.New(backend, cfg.Generation, log)

	return &engine{
		cfg:          cfg,
		log:          log,
		extractor:    extract.New(ocrBackend(cfg.Extraction), entityDetector(cfg.Extraction), log),
		index:        indexStore,
		sessions:     sessionStore,
		orchestrator: session.NewOrchestrator(retriever, generator, sessionStore, log),
	}, nil
}

// Close releases the engine's stores and flushes the logger.
func (e *engine) Close() {
	e.index.Close()
	e.sessions.Close()
	e.log.Sync()
}

// generationBackend selects the model backend from configuration.
func generationBackend(cfg types.GenerationConfig) (generate.Backend, error) {
	switch cfg.Backend {
	case "", "claude":
		return &generate.ClaudeBackend{Endpoint: cfg.Endpoint, APIKey: cfg.APIKey, Model: cfg.Model}, nil
	case "ollama":
		return &generate.OllamaBackend{Endpoint: cfg.Endpoint, Model: cfg.Model}, nil
	case "service":
		return &generate.ServiceBackend{Endpoint: cfg.Endpoint, APIKey: cfg.APIKey}, nil
	default:
		return nil, fmt.Errorf("unknown generation backend %q: use claude, ollama, or service", cfg.Backend)
	}
}

// ocrBackend selects the document analyzer: a remote service when an
// endpoint is configured, the built-in PDF text backend otherwise.
func ocrBackend(cfg types.ExtractionConfig) extract.OCRBackend {
	if cfg.AnalyzerEndpoint != "" {
		return &extract.HTTPAnalyzer{Endpoint: cfg.AnalyzerEndpoint, APIKey: cfg.APIKey}
	}
	return extract.PDFBackend{}
}

// entityDetector selects the entity detector, or nil when none is
// configured and ingestion proceeds without entities.
func entityDetector(cfg types.ExtractionConfig) extract.EntityDetector {
	if cfg.DetectorEndpoint == "" {
		return nil
	}
	return &extract.HTTPDetector{Endpoint: cfg.DetectorEndpoint, APIKey: cfg.APIKey}
}
