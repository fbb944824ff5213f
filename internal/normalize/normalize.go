// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize maps heterogeneous model-backend payloads into the
// canonical query result. Backends differ in envelope shape and field
// naming; the rest of the engine only ever sees types.QueryResult.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

// FallbackAnswer substitutes for an absent or empty answer field so the
// canonical result never carries an empty answer.
const FallbackAnswer = "No response available from the medical AI system."

// answerFields is the extraction priority for the answer text.
var answerFields = []string{"answer", "response", "text", "message"}

// Normalize decodes a raw backend payload into the canonical query result.
//
// Three payload shapes are recognized, checked in order: an envelope whose
// "body" field is a string of JSON, an envelope whose "body" field is an
// object, and a direct payload with no envelope. Missing fields degrade to
// defaults; the only failure is JSON that cannot be parsed at all, which
// surfaces as a NormalizationError.
func Normalize(raw []byte) (types.QueryResult, error) {
	payload, err := unwrap(raw)
	if err != nil {
		return types.QueryResult{}, err
	}

	result := types.QueryResult{
		Answer:           extractAnswer(payload),
		Sources:          extractSources(payload),
		FileReferences:   extractFileReferences(payload),
		QueryType:        extractQueryType(payload),
		ProcessingTimeMs: extractInt64(payload, "processingTimeMs", "processing_time_ms"),
		ConfidenceScore:  extractFloat64(payload, "confidenceScore", "confidence_score"),
		SessionID:        extractString(payload, "sessionId", "session_id"),
	}
	return result, nil
}

// unwrap locates the payload object inside the raw bytes, peeling one
// envelope layer when present.
func unwrap(raw []byte) (map[string]json.RawMessage, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, &types.NormalizationError{Err: fmt.Errorf("parsing backend payload: %w", err)}
	}

	body, ok := outer["body"]
	if !ok {
		return outer, nil
	}

	// String body: a JSON document encoded as a JSON string. Malformed
	// inner JSON is the one unrecoverable case.
	var encoded string
	if err := json.Unmarshal(body, &encoded); err == nil {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal([]byte(encoded), &inner); err != nil {
			return nil, &types.NormalizationError{Err: fmt.Errorf("parsing string-encoded body: %w", err)}
		}
		return inner, nil
	}

	// Object body: use it directly.
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(body, &inner); err == nil {
		return inner, nil
	}

	// A body of some other JSON kind is not an envelope; the raw object
	// itself is the payload.
	return outer, nil
}

func extractAnswer(payload map[string]json.RawMessage) string {
	for _, field := range answerFields {
		if s := decodeString(payload[field]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return FallbackAnswer
}

// extractSources merges the three optional source containers into one
// deduplicated list, preserving first-seen order: a documents list of
// objects or bare strings, a citations list with nested sources, and a
// flat sources list.
func extractSources(payload map[string]json.RawMessage) []string {
	seen := make(map[string]bool)
	merged := make([]string, 0)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		merged = append(merged, name)
	}

	for _, entry := range decodeList(payload["documents"]) {
		add(entryName(entry))
	}
	for _, entry := range decodeList(payload["citations"]) {
		var citation struct {
			Sources []json.RawMessage `json:"sources"`
		}
		if err := json.Unmarshal(entry, &citation); err != nil {
			continue
		}
		for _, src := range citation.Sources {
			add(entryName(src))
		}
	}
	for _, entry := range decodeList(payload["sources"]) {
		add(entryName(entry))
	}
	return merged
}

// extractFileReferences walks the same containers as extractSources but
// keeps the reference structure instead of flattening to names.
func extractFileReferences(payload map[string]json.RawMessage) []types.FileReference {
	seen := make(map[string]bool)
	refs := make([]types.FileReference, 0)
	add := func(ref types.FileReference) {
		key := ref.ID
		if key == "" {
			key = ref.Name
		}
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, ref)
	}

	for _, field := range []string{"fileReferences", "file_references", "documents"} {
		for _, entry := range decodeList(payload[field]) {
			var ref types.FileReference
			if err := json.Unmarshal(entry, &ref); err == nil && (ref.ID != "" || ref.Name != "") {
				add(ref)
				continue
			}
			// Bare string entries carry a name and nothing else.
			var name string
			if err := json.Unmarshal(entry, &name); err == nil && name != "" {
				add(types.FileReference{Name: name})
			}
		}
	}
	return refs
}

func extractQueryType(payload map[string]json.RawMessage) types.QueryType {
	raw := extractString(payload, "queryType", "query_type")
	switch types.QueryType(raw) {
	case types.QueryGeneral, types.QueryDocument, types.QueryError:
		return types.QueryType(raw)
	}
	return types.QueryGeneral
}

func extractString(payload map[string]json.RawMessage, fields ...string) string {
	for _, field := range fields {
		if s := decodeString(payload[field]); s != "" {
			return s
		}
	}
	return ""
}

func extractInt64(payload map[string]json.RawMessage, fields ...string) *int64 {
	for _, field := range fields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		var n int64
		if err := json.Unmarshal(raw, &n); err == nil {
			return &n
		}
	}
	return nil
}

func extractFloat64(payload map[string]json.RawMessage, fields ...string) *float64 {
	for _, field := range fields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return &f
		}
	}
	return nil
}

func decodeString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeList(raw json.RawMessage) []json.RawMessage {
	if raw == nil {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// entryName extracts a display name from a container entry that may be a
// bare string or a document object.
func entryName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	if doc.Name != "" {
		return doc.Name
	}
	return doc.Title
}
