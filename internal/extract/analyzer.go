// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

// HTTPAnalyzer calls a document analyzer service that performs OCR with
// table and form detection.
type HTTPAnalyzer struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// analyzeRequest is the request body for the analyzer service.
type analyzeRequest struct {
	Document  string `json:"document"`
	SourceRef string `json:"source_ref,omitempty"`
}

// analyzeResponse is the response body from the analyzer service.
type analyzeResponse struct {
	Blocks []Block `json:"blocks"`
}

// Analyze posts the document to the analyzer and returns its blocks.
func (h *HTTPAnalyzer) Analyze(ctx context.Context, content []byte, sourceRef string) ([]Block, error) {
	reqBody := analyzeRequest{
		Document:  base64.StdEncoding.EncodeToString(content),
		SourceRef: sourceRef,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint+"/analyze", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("x-api-key", h.APIKey)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, string(body))
	}

	var aResp analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&aResp); err != nil {
		return nil, fmt.Errorf("decoding analyzer response: %w", err)
	}
	return aResp.Blocks, nil
}

// HTTPDetector calls a medical entity detection service.
type HTTPDetector struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// detectRequest is the request body for the detector service.
type detectRequest struct {
	Text string `json:"text"`
}

// detectResponse is the response body from the detector service.
type detectResponse struct {
	Entities []types.MedicalEntity `json:"entities"`
}

// Detect posts text to the detector and returns the raw entity list.
// Filtering by score is the adapter's job.
func (h *HTTPDetector) Detect(ctx context.Context, text string) ([]types.MedicalEntity, error) {
	bodyBytes, err := json.Marshal(detectRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint+"/detect", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("x-api-key", h.APIKey)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detector returned %d: %s", resp.StatusCode, string(body))
	}

	var dResp detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dResp); err != nil {
		return nil, fmt.Errorf("decoding detector response: %w", err)
	}
	return dResp.Entities, nil
}
