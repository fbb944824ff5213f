// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

// ClassifyDocument infers a document type from title and content keywords.
// Checks are case-insensitive substring matches in fixed priority order:
// lab, discharge, radiology, prescription, then general-medical.
func ClassifyDocument(title, content string) types.DocumentType {
	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(content)

	switch {
	case strings.Contains(titleLower, "lab") || strings.Contains(contentLower, "laboratory"):
		return types.DocLabReport
	case strings.Contains(titleLower, "discharge") || strings.Contains(contentLower, "discharge"):
		return types.DocDischargeSummary
	case strings.Contains(titleLower, "radiology") ||
		strings.Contains(titleLower, "xray") ||
		strings.Contains(titleLower, "mri"):
		return types.DocRadiology
	case strings.Contains(titleLower, "prescription") || strings.Contains(contentLower, "medication"):
		return types.DocPrescription
	default:
		return types.DocGeneralMedical
	}
}
