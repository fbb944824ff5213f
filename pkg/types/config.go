// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ExtractionConfig holds settings for the document text and entity
// extraction stage.
type ExtractionConfig struct {
	// AnalyzerEndpoint is the URL of the document analyzer (OCR) service.
	// Empty selects the built-in PDF text backend.
	AnalyzerEndpoint string `json:"analyzer_endpoint,omitempty" yaml:"analyzer_endpoint,omitempty"`

	// DetectorEndpoint is the URL of the medical entity detector service.
	// Empty disables entity detection; ingestion proceeds with no entities.
	DetectorEndpoint string `json:"detector_endpoint,omitempty" yaml:"detector_endpoint,omitempty"`

	// APIKey authenticates against the analyzer and detector services.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// RetrievalConfig holds settings for the retrieval stage.
type RetrievalConfig struct {
	// IndexID identifies the retrieval index to query. The local index
	// keeps one database file per id (default "medassist").
	IndexID string `json:"index_id" yaml:"index_id"`

	// MaxResults is the default maximum number of evidence snippets
	// returned per query (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// GenerationConfig holds settings for the generative-model backend,
// including the retry and timeout budget for one call.
type GenerationConfig struct {
	// Backend selects the model backend: "claude", "ollama", or
	// "service" (default "claude").
	Backend string `json:"backend" yaml:"backend"`

	// Endpoint is the generation backend base URL. Empty uses the
	// backend's default endpoint.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Model is the model identifier sent to the backend.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the backend.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retries after the first attempt for
	// throttled calls (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelayMs is the base backoff delay in milliseconds (default 2000).
	BaseDelayMs int `json:"base_delay_ms" yaml:"base_delay_ms"`

	// MaxDelayMs caps a single backoff delay in milliseconds (default 15000).
	MaxDelayMs int `json:"max_delay_ms" yaml:"max_delay_ms"`

	// TimeoutMs bounds one whole Generate call, retries included
	// (default 30000).
	TimeoutMs int `json:"timeout_ms" yaml:"timeout_ms"`
}

// IndexConfig holds settings for the local document index.
type IndexConfig struct {
	// DataDir is the directory holding the index database (default "data").
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// SessionConfig holds settings for session persistence.
type SessionConfig struct {
	// DataDir is the directory holding the session database (default "data").
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// AllowedOrigins lists CORS origins permitted to call the API.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`

	// LogMode selects logger configuration: "dev" or "prod" (default "dev").
	LogMode string `json:"log_mode" yaml:"log_mode"`
}

// Config groups all component configurations.
type Config struct {
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Index      IndexConfig      `json:"index" yaml:"index"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}
