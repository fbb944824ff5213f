// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfLineConfidence is the fixed confidence assigned to text parsed directly
// from a PDF. Parsed text is exact, not recognized.
const pdfLineConfidence = 100

// PDFBackend extracts plain text from PDF bytes without an external OCR
// service. Non-PDF input falls back to treating the bytes as UTF-8 text.
type PDFBackend struct{}

// Analyze parses the document and returns one line block per non-empty line.
func (PDFBackend) Analyze(_ context.Context, content []byte, sourceRef string) ([]Block, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty document %s", sourceRef)
	}

	text := pdfText(content)
	if text == "" {
		text = string(content)
	}

	var blocks []Block
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		blocks = append(blocks, Block{
			Kind:       BlockLine,
			Text:       strings.TrimSpace(line),
			Confidence: pdfLineConfidence,
		})
	}
	return blocks, nil
}

// pdfText extracts the plain-text stream of a PDF, or "" when the bytes do
// not parse as one.
func pdfText(content []byte) string {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return ""
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return string(out)
}
