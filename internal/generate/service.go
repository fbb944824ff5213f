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

// ServiceBackend calls a hosted answering service that may wrap its payload
// in a gateway envelope, possibly with a string-encoded JSON body. The body
// is returned verbatim; shape detection is the normalizer's job.
type ServiceBackend struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// serviceRequest is the request body for the answering service.
type serviceRequest struct {
	Query     string            `json:"query"`
	SessionID string            `json:"sessionId,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
}

func (s *ServiceBackend) Name() string { return "service" }

// Invoke posts the prompt with call options and returns the raw body.
func (s *ServiceBackend) Invoke(ctx context.Context, prompt string, opts Options) ([]byte, error) {
	bodyBytes, err := json.Marshal(serviceRequest{
		Query:     prompt,
		SessionID: opts.SessionID,
		Filters:   opts.Filters,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling answering service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading service response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &types.ThrottlingError{Message: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.BackendError{Status: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}
