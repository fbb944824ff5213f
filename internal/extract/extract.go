// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns raw document bytes into plain text and typed medical
// entities by driving an OCR collaborator and an entity detector.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

// minEntityScore is the detection threshold. Entities at or below it are
// silently dropped.
const minEntityScore = 0.8

// maxDetectorChars bounds the text sent to the entity detector, which has
// input size limits.
const maxDetectorChars = 20000

// BlockKind discriminates the block types produced by an OCR backend.
type BlockKind string

const (
	BlockLine     BlockKind = "line"
	BlockTable    BlockKind = "table"
	BlockKeyValue BlockKind = "key_value"
)

// Block is one unit of analyzer output. Confidence is on a 0-100 scale and
// is meaningful only for line blocks.
type Block struct {
	Kind       BlockKind `json:"kind"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
}

// OCRBackend analyzes raw document bytes into text blocks. Each
// implementation handles one analyzer service per the Strategy pattern.
type OCRBackend interface {
	Analyze(ctx context.Context, content []byte, sourceRef string) ([]Block, error)
}

// EntityDetector finds typed medical entities in plain text.
type EntityDetector interface {
	Detect(ctx context.Context, text string) ([]types.MedicalEntity, error)
}

// Result is the outcome of one extraction.
type Result struct {
	// Text is the extracted plain text, with table and form sections
	// appended after the line text.
	Text string `json:"text"`

	// Confidence is the arithmetic mean of line-level confidence scores,
	// 0 when no lines were detected.
	Confidence float64 `json:"confidence"`

	// Entities are the detected medical entities scoring above the
	// detection threshold.
	Entities []types.MedicalEntity `json:"entities"`
}

// Adapter wraps the OCR and entity collaborators behind a single pure
// transform. A nil detector disables entity detection.
type Adapter struct {
	ocr      OCRBackend
	detector EntityDetector
	log      *logger.Logger
}

// New builds an extraction adapter.
func New(ocr OCRBackend, detector EntityDetector, log *logger.Logger) *Adapter {
	return &Adapter{ocr: ocr, detector: detector, log: log.With("component", "extract")}
}

// Extract analyzes document bytes and returns text, mean confidence, and
// filtered entities. An analyzer error or zero blocks yields an
// ExtractionError; the caller may still index an empty or partial record.
// Detector failures degrade to zero entities rather than failing the call.
func (a *Adapter) Extract(ctx context.Context, content []byte, sourceRef string) (Result, error) {
	blocks, err := a.ocr.Analyze(ctx, content, sourceRef)
	if err != nil {
		return Result{}, &types.ExtractionError{Err: err}
	}
	if len(blocks) == 0 {
		return Result{}, &types.ExtractionError{Err: fmt.Errorf("analyzer returned no blocks for %s", sourceRef)}
	}

	text, confidence := assembleText(blocks)

	result := Result{Text: text, Confidence: confidence}
	if a.detector == nil || strings.TrimSpace(text) == "" {
		return result, nil
	}

	detectText := text
	if len(detectText) > maxDetectorChars {
		detectText = detectText[:maxDetectorChars]
	}

	entities, err := a.detector.Detect(ctx, detectText)
	if err != nil {
		a.log.Warn("entity detection failed, continuing without entities",
			"source_ref", sourceRef, "error", err)
		return result, nil
	}

	result.Entities = filterEntities(entities)
	return result, nil
}

// assembleText joins line blocks, then appends table and form sections when
// present, and returns the mean line confidence.
func assembleText(blocks []Block) (string, float64) {
	var (
		lines, tables, keyValues []string
		confidenceSum            float64
		lineCount                int
	)

	for _, b := range blocks {
		switch b.Kind {
		case BlockLine:
			lines = append(lines, b.Text)
			confidenceSum += b.Confidence
			lineCount++
		case BlockTable:
			tables = append(tables, "Table: "+b.Text)
		case BlockKeyValue:
			keyValues = append(keyValues, b.Text)
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(lines, "\n"))
	if len(tables) > 0 {
		sb.WriteString("\n\nTables:\n")
		sb.WriteString(strings.Join(tables, "\n\n"))
	}
	if len(keyValues) > 0 {
		sb.WriteString("\n\nForm Data:\n")
		sb.WriteString(strings.Join(keyValues, "\n"))
	}

	confidence := 0.0
	if lineCount > 0 {
		confidence = confidenceSum / float64(lineCount)
	}
	return sb.String(), confidence
}

// filterEntities keeps entities scoring strictly above the detection
// threshold.
func filterEntities(entities []types.MedicalEntity) []types.MedicalEntity {
	var kept []types.MedicalEntity
	for _, e := range entities {
		if e.Score > minEntityScore {
			kept = append(kept, e)
		}
	}
	return kept
}
