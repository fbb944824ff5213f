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

// defaultClaudeURL is the Claude Messages API endpoint.
const defaultClaudeURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Claude Messages API. It flattens the content
// blocks into a direct {answer} payload for the normalizer.
type ClaudeBackend struct {
	Endpoint string
	APIKey   string
	Model    string
	Client   *http.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
	Error   *claudeAPIError `json:"error,omitempty"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// claudeAPIError is the error object in a non-200 Claude API response.
type claudeAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *ClaudeBackend) Name() string { return "claude" }

// Invoke sends the prompt as a single user message and returns a flat
// {answer} payload built from the text content blocks.
func (c *ClaudeBackend) Invoke(ctx context.Context, prompt string, _ Options) ([]byte, error) {
	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: 4096,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultClaudeURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return nil, &types.ThrottlingError{Message: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var cResp claudeResponse
		if json.Unmarshal(body, &cResp) == nil && cResp.Error != nil {
			if cResp.Error.Type == "rate_limit_error" || cResp.Error.Type == "overloaded_error" {
				return nil, &types.ThrottlingError{Message: cResp.Error.Message}
			}
			return nil, &types.BackendError{Status: resp.StatusCode, Message: cResp.Error.Message}
		}
		return nil, &types.BackendError{Status: resp.StatusCode, Message: string(body)}
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return nil, fmt.Errorf("decoding Claude response: %w", err)
	}

	var text strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	payload, err := json.Marshal(map[string]string{"answer": text.String()})
	if err != nil {
		return nil, fmt.Errorf("building payload: %w", err)
	}
	return payload, nil
}
