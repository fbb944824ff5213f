// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

// --- mock collaborators ---

type mockOCR struct {
	blocks []Block
	err    error
}

func (m *mockOCR) Analyze(_ context.Context, _ []byte, _ string) ([]Block, error) {
	return m.blocks, m.err
}

type mockDetector struct {
	entities []types.MedicalEntity
	err      error
	gotText  string
}

func (m *mockDetector) Detect(_ context.Context, text string) ([]types.MedicalEntity, error) {
	m.gotText = text
	return m.entities, m.err
}

func lineBlocks(confidences ...float64) []Block {
	var blocks []Block
	for i, c := range confidences {
		blocks = append(blocks, Block{Kind: BlockLine, Text: fmt.Sprintf("line %d", i), Confidence: c})
	}
	return blocks
}

func TestExtract_MeanConfidence(t *testing.T) {
	tests := []struct {
		name   string
		blocks []Block
		want   float64
	}{
		{"single line", lineBlocks(90), 90},
		{"mean of lines", lineBlocks(80, 90, 100), 90},
		{"non-line blocks excluded", append(lineBlocks(60, 80), Block{Kind: BlockTable, Text: "a | b", Confidence: 10}), 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&mockOCR{blocks: tt.blocks}, nil, logger.NewNop())
			result, err := a.Extract(context.Background(), []byte("doc"), "test.pdf")
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if result.Confidence != tt.want {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.want)
			}
		})
	}
}

func TestExtract_TextAssembly(t *testing.T) {
	blocks := []Block{
		{Kind: BlockLine, Text: "Patient: Jane Doe", Confidence: 99},
		{Kind: BlockLine, Text: "CBC panel results follow", Confidence: 97},
		{Kind: BlockTable, Text: "WBC | 5.2 | RBC | 4.8"},
		{Kind: BlockKeyValue, Text: "Collected: 2026-02-14"},
	}
	a := New(&mockOCR{blocks: blocks}, nil, logger.NewNop())

	result, err := a.Extract(context.Background(), []byte("doc"), "cbc.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := "Patient: Jane Doe\nCBC panel results follow\n\nTables:\nTable: WBC | 5.2 | RBC | 4.8\n\nForm Data:\nCollected: 2026-02-14"
	if result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
}

func TestExtract_FailsOnAnalyzerError(t *testing.T) {
	a := New(&mockOCR{err: errors.New("service unavailable")}, nil, logger.NewNop())

	_, err := a.Extract(context.Background(), []byte("doc"), "test.pdf")
	var extractErr *types.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtract_FailsOnZeroBlocks(t *testing.T) {
	a := New(&mockOCR{}, nil, logger.NewNop())

	_, err := a.Extract(context.Background(), []byte("doc"), "test.pdf")
	var extractErr *types.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtract_EntityFiltering(t *testing.T) {
	detector := &mockDetector{entities: []types.MedicalEntity{
		{Text: "metformin", Category: "MEDICATION", Score: 0.99},
		{Text: "fatigue", Category: "MEDICAL_CONDITION", Score: 0.8},
		{Text: "aspirin", Category: "MEDICATION", Score: 0.81},
		{Text: "noise", Category: "MEDICAL_CONDITION", Score: 0.2},
	}}
	a := New(&mockOCR{blocks: lineBlocks(95)}, detector, logger.NewNop())

	result, err := a.Extract(context.Background(), []byte("doc"), "rx.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Only strictly-above-threshold entities survive, in detector order.
	if len(result.Entities) != 2 {
		t.Fatalf("got %d entities, want 2: %+v", len(result.Entities), result.Entities)
	}
	if result.Entities[0].Text != "metformin" || result.Entities[1].Text != "aspirin" {
		t.Errorf("unexpected entities: %+v", result.Entities)
	}
}

func TestExtract_DetectorFailureDegrades(t *testing.T) {
	detector := &mockDetector{err: errors.New("detector down")}
	a := New(&mockOCR{blocks: lineBlocks(95)}, detector, logger.NewNop())

	result, err := a.Extract(context.Background(), []byte("doc"), "test.pdf")
	if err != nil {
		t.Fatalf("Extract should not fail on detector error: %v", err)
	}
	if len(result.Entities) != 0 {
		t.Errorf("got %d entities, want 0", len(result.Entities))
	}
}

func TestExtract_DetectorInputBounded(t *testing.T) {
	long := strings.Repeat("x", maxDetectorChars+5000)
	detector := &mockDetector{}
	a := New(&mockOCR{blocks: []Block{{Kind: BlockLine, Text: long, Confidence: 95}}}, detector, logger.NewNop())

	if _, err := a.Extract(context.Background(), []byte("doc"), "big.pdf"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(detector.gotText) != maxDetectorChars {
		t.Errorf("detector received %d chars, want %d", len(detector.gotText), maxDetectorChars)
	}
}

func TestClassifyDocument(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		want    types.DocumentType
	}{
		{"lab in title", "Lab Report — CBC Panel", "", types.DocLabReport},
		{"laboratory in content", "Results", "laboratory findings attached", types.DocLabReport},
		{"discharge in title", "Discharge Instructions", "", types.DocDischargeSummary},
		{"radiology keyword", "Chest Radiology Review", "", types.DocRadiology},
		{"xray keyword", "XRAY left wrist", "", types.DocRadiology},
		{"mri keyword", "Brain MRI findings", "", types.DocRadiology},
		{"prescription title", "Prescription refill", "", types.DocPrescription},
		{"medication in content", "Notes", "take medication twice daily", types.DocPrescription},
		{"fallback", "Visit summary", "follow up in two weeks", types.DocGeneralMedical},
		{"case insensitive", "LAB WORK", "", types.DocLabReport},
		{"lab wins over discharge", "Lab work before discharge", "", types.DocLabReport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDocument(tt.title, tt.content); got != tt.want {
				t.Errorf("ClassifyDocument(%q, %q) = %q, want %q", tt.title, tt.content, got, tt.want)
			}
		})
	}
}
