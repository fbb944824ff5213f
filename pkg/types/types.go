// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model and configuration for the
// medical-document assistant engine.
package types

import "time"

// ConfidenceLabel is the relevance confidence reported by the retrieval
// collaborator for one evidence snippet. The taxonomy is owned by the
// collaborator and passed through unchanged.
type ConfidenceLabel string

const (
	ConfidenceVeryHigh ConfidenceLabel = "VERY_HIGH"
	ConfidenceHigh     ConfidenceLabel = "HIGH"
	ConfidenceMedium   ConfidenceLabel = "MEDIUM"
	ConfidenceLow      ConfidenceLabel = "LOW"
)

// AttributeKind discriminates the value held by an AttributeValue.
type AttributeKind string

const (
	AttrString AttributeKind = "string"
	AttrNumber AttributeKind = "number"
	AttrDate   AttributeKind = "date"
)

// AttributeValue is one structured attribute attached to an evidence snippet
// or indexed document. Exactly one of Str, Num, or Date is meaningful,
// selected by Kind.
type AttributeValue struct {
	Kind AttributeKind `json:"kind" yaml:"kind"`
	Str  string        `json:"str,omitempty" yaml:"str,omitempty"`
	Num  float64       `json:"num,omitempty" yaml:"num,omitempty"`
	Date time.Time     `json:"date,omitempty" yaml:"date,omitempty"`
}

// StringAttr builds a string-kinded attribute value.
func StringAttr(s string) AttributeValue { return AttributeValue{Kind: AttrString, Str: s} }

// NumberAttr builds a number-kinded attribute value.
func NumberAttr(n float64) AttributeValue { return AttributeValue{Kind: AttrNumber, Num: n} }

// DateAttr builds a date-kinded attribute value.
func DateAttr(t time.Time) AttributeValue { return AttributeValue{Kind: AttrDate, Date: t} }

// EvidenceSnippet is a ranked excerpt from the retrieval collaborator used as
// grounding for generation. Snippets are immutable and live for one query turn.
type EvidenceSnippet struct {
	// ID is the collaborator's identifier for the matched document.
	ID string `json:"id" yaml:"id"`

	// Title is the matched document's title.
	Title string `json:"title" yaml:"title"`

	// Excerpt is the matched passage.
	Excerpt string `json:"excerpt" yaml:"excerpt"`

	// SourceURI locates the underlying document (e.g. an object-store URI).
	SourceURI string `json:"source_uri" yaml:"source_uri"`

	// Confidence is the collaborator's relevance label for this snippet.
	Confidence ConfidenceLabel `json:"confidence" yaml:"confidence"`

	// Attributes holds the document's structured attributes keyed by
	// attribute name.
	Attributes map[string]AttributeValue `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// EntityTrait is a contextual modifier on a medical entity (e.g. NEGATION).
type EntityTrait struct {
	Name  string  `json:"name" yaml:"name"`
	Score float64 `json:"score" yaml:"score"`
}

// MedicalEntity is a typed clinical term detected in extracted text.
// Entities surfaced by the extraction adapter always score above the
// detection threshold.
type MedicalEntity struct {
	Text     string        `json:"text" yaml:"text"`
	Category string        `json:"category" yaml:"category"`
	Type     string        `json:"type" yaml:"type"`
	Score    float64       `json:"score" yaml:"score"`
	Traits   []EntityTrait `json:"traits,omitempty" yaml:"traits,omitempty"`
}

// DocumentType classifies an ingested document by content.
type DocumentType string

const (
	DocLabReport        DocumentType = "lab-report"
	DocDischargeSummary DocumentType = "discharge-summary"
	DocRadiology        DocumentType = "radiology"
	DocPrescription     DocumentType = "prescription"
	DocGeneralMedical   DocumentType = "general-medical"
)

// Document is the canonical record for one ingested medical document.
// It is created at ingestion and never mutated afterwards except by
// re-indexing.
type Document struct {
	ID             string          `json:"id" yaml:"id"`
	Title          string          `json:"title" yaml:"title"`
	ExtractedText  string          `json:"extracted_text" yaml:"extracted_text"`
	Entities       []MedicalEntity `json:"entities,omitempty" yaml:"entities,omitempty"`
	SourceLocation string          `json:"source_location" yaml:"source_location"`
	PatientID      string          `json:"patient_id,omitempty" yaml:"patient_id,omitempty"`
	UploadedAt     time.Time       `json:"uploaded_at" yaml:"uploaded_at"`
	DocumentType   DocumentType    `json:"document_type" yaml:"document_type"`
}

// QueryType classifies the turn by how it was answered.
type QueryType string

const (
	QueryGeneral  QueryType = "general"
	QueryDocument QueryType = "document_query"
	QueryError    QueryType = "error"
)

// FileReference is a structured pointer to a cited document, preserving more
// shape than the flat source name list.
type FileReference struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string `json:"name" yaml:"name"`
	Excerpt    string `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	Confidence string `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
}

// QueryResult is the canonical, backend-agnostic shape returned for any
// query. Answer is never empty: a deterministic fallback is substituted when
// the model returns no text. Sources are deduplicated in first-seen order.
type QueryResult struct {
	Answer           string          `json:"answer" yaml:"answer"`
	Sources          []string        `json:"sources" yaml:"sources"`
	FileReferences   []FileReference `json:"file_references" yaml:"file_references"`
	QueryType        QueryType       `json:"query_type" yaml:"query_type"`
	ProcessingTimeMs *int64          `json:"processing_time_ms" yaml:"processing_time_ms"`
	ConfidenceScore  *float64        `json:"confidence_score" yaml:"confidence_score"`
	SessionID        string          `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// TurnQuery is the user half of a conversation turn.
type TurnQuery struct {
	Text      string    `json:"text" yaml:"text"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// TurnResponse is the assistant half of a conversation turn.
type TurnResponse struct {
	Text             string          `json:"text" yaml:"text"`
	Timestamp        time.Time       `json:"timestamp" yaml:"timestamp"`
	Sources          []string        `json:"sources" yaml:"sources"`
	FileReferences   []FileReference `json:"file_references" yaml:"file_references"`
	QueryType        QueryType       `json:"query_type" yaml:"query_type"`
	ProcessingTimeMs *int64          `json:"processing_time_ms" yaml:"processing_time_ms"`
	ConfidenceScore  *float64        `json:"confidence_score" yaml:"confidence_score"`
}

// ConversationTurn is one stored query/response exchange. Turns are
// append-only and deleted only as part of whole-session deletion.
type ConversationTurn struct {
	SessionID string       `json:"session_id" yaml:"session_id"`
	TurnID    string       `json:"turn_id" yaml:"turn_id"`
	Query     TurnQuery    `json:"query" yaml:"query"`
	Response  TurnResponse `json:"response" yaml:"response"`
}

// Session is a named, ordered sequence of conversation turns belonging to
// one user.
type Session struct {
	ID           string    `json:"id" yaml:"id"`
	UserID       string    `json:"user_id" yaml:"user_id"`
	Title        string    `json:"title" yaml:"title"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
	LastMessage  string    `json:"last_message,omitempty" yaml:"last_message,omitempty"`
}

// Filter keys recognized by the retrieval collaborator. Values are strings;
// date values use RFC 3339 date format.
const (
	FilterDocumentID   = "document_id"
	FilterDocumentName = "document_name"
	FilterPatientName  = "patient_name"
	FilterPatientID    = "patient_id"
	FilterDocumentType = "document_type"
	FilterDateFrom     = "date_from"
	FilterDateTo       = "date_to"
)
