// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

// defaultOllamaURL is the local Ollama server address.
const defaultOllamaURL = "http://localhost:11434"

// OllamaBackend calls a local Ollama server. The generate response is a
// flat object whose "response" field carries the answer, so the body passes
// to the normalizer verbatim.
type OllamaBackend struct {
	Endpoint string
	Model    string
	Client   *http.Client
}

// ollamaRequest is the request body for the Ollama generate endpoint.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

func (o *OllamaBackend) Name() string { return "ollama" }

// Invoke posts the prompt to /api/generate and returns the response body.
func (o *OllamaBackend) Invoke(ctx context.Context, prompt string, _ Options) ([]byte, error) {
	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = defaultOllamaURL
	}

	bodyBytes, err := json.Marshal(ollamaRequest{Model: o.Model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return nil, &types.ThrottlingError{Message: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &types.BackendError{Status: resp.StatusCode, Message: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ollama response: %w", err)
	}
	return body, nil
}
