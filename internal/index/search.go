// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

// excerptTokens is the snippet length, in FTS5 tokens, returned for each match.
const excerptTokens = 48

// Search runs an FTS5 full-text query with AND-composed attribute filters
// and returns ranked evidence snippets plus the total match count. The
// returned slice is bounded by maxResults; the count is not.
func (s *Store) Search(ctx context.Context, query string, filters map[string]string, maxResults int) ([]types.EvidenceSnippet, int, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, fmt.Errorf("query is empty")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	where, args := buildFilters(filters)

	countQuery := `SELECT count(*) FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?` + where

	var total int
	countArgs := append([]any{ftsQuery(query)}, args...)
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting matches: %w", err)
	}

	rowQuery := `SELECT d.id, d.title,
			snippet(documents_fts, 1, '', '', '...', ` + fmt.Sprint(excerptTokens) + `) AS excerpt,
			d.patient_id, d.document_type, d.upload_date, d.source_location,
			d.medical_entities, d.entity_count
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?` + where + `
		ORDER BY documents_fts.rank
		LIMIT ?`

	rowArgs := append(countArgs, maxResults)
	rows, err := s.db.QueryContext(ctx, rowQuery, rowArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var snippets []types.EvidenceSnippet
	for rows.Next() {
		var (
			snip                            types.EvidenceSnippet
			patientID, docType, uploadDate  sql.NullString
			sourceLocation, medicalEntities sql.NullString
			entityCount                     int
		)
		if err := rows.Scan(&snip.ID, &snip.Title, &snip.Excerpt,
			&patientID, &docType, &uploadDate, &sourceLocation,
			&medicalEntities, &entityCount); err != nil {
			return nil, 0, fmt.Errorf("scanning result row: %w", err)
		}

		snip.SourceURI = sourceLocation.String
		snip.Confidence = confidenceForRank(len(snippets))
		snip.Attributes = buildAttributes(patientID.String, docType.String,
			uploadDate.String, sourceLocation.String, medicalEntities.String, entityCount)
		snippets = append(snippets, snip)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating results: %w", err)
	}

	return snippets, total, nil
}

// ftsQuery quotes each term so user punctuation cannot break FTS5 syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, ``)+`"`)
	}
	return strings.Join(quoted, " ")
}

// buildFilters turns the recognized filter keys into AND-composed SQL
// conditions. Unknown keys are ignored. Patient filters match the patient
// identifier recorded at ingestion.
func buildFilters(filters map[string]string) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)

	add := func(cond string, val any) {
		sb.WriteString(" AND " + cond)
		args = append(args, val)
	}

	if v := filters[types.FilterDocumentID]; v != "" {
		add("d.id = ?", v)
	}
	if v := filters[types.FilterDocumentName]; v != "" {
		add("d.title = ?", v)
	}
	if v := filters[types.FilterPatientID]; v != "" {
		add("d.patient_id = ?", v)
	}
	if v := filters[types.FilterPatientName]; v != "" {
		add("d.patient_id = ?", v)
	}
	if v := filters[types.FilterDocumentType]; v != "" {
		add("d.document_type = ?", v)
	}
	if v := filters[types.FilterDateFrom]; v != "" {
		add("d.upload_date >= ?", v)
	}
	if v := filters[types.FilterDateTo]; v != "" {
		add("d.upload_date <= ?", v)
	}

	return sb.String(), args
}

// confidenceForRank maps a result's rank position onto the confidence label
// taxonomy the retrieval contract reports.
func confidenceForRank(position int) types.ConfidenceLabel {
	switch {
	case position == 0:
		return types.ConfidenceVeryHigh
	case position <= 2:
		return types.ConfidenceHigh
	case position <= 4:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

func buildAttributes(patientID, docType, uploadDate, sourceLocation, medicalEntities string, entityCount int) map[string]types.AttributeValue {
	attrs := make(map[string]types.AttributeValue)
	if patientID != "" {
		attrs["patient_id"] = types.StringAttr(patientID)
	}
	if docType != "" {
		attrs["document_type"] = types.StringAttr(docType)
	}
	if uploadDate != "" {
		if t, err := time.Parse(time.RFC3339, uploadDate); err == nil {
			attrs["upload_date"] = types.DateAttr(t)
		}
	}
	if sourceLocation != "" {
		attrs["source_location"] = types.StringAttr(sourceLocation)
	}
	if medicalEntities != "" {
		attrs["medical_entities"] = types.StringAttr(medicalEntities)
	}
	attrs["entity_count"] = types.NumberAttr(float64(entityCount))
	return attrs
}
