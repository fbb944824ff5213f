// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportEntry holds one indexed document's attributes for export. Content
// is omitted; exports are an inventory, not a backup.
type ExportEntry struct {
	ID             string `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	PatientID      string `json:"patient_id,omitempty" yaml:"patient_id,omitempty"`
	DocumentType   string `json:"document_type" yaml:"document_type"`
	UploadDate     string `json:"upload_date" yaml:"upload_date"`
	SourceLocation string `json:"source_location,omitempty" yaml:"source_location,omitempty"`
	EntityCount    int    `json:"entity_count" yaml:"entity_count"`
}

// ExportYAML writes the document inventory to dir/export.yaml.
func (s *Store) ExportYAML(ctx context.Context, dir string) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "export.yaml"), data, 0o644)
}

// ExportJSON writes the document inventory to dir/export.json.
func (s *Store) ExportJSON(ctx context.Context, dir string) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "export.json"), data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context) ([]ExportEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, patient_id, document_type, upload_date, source_location, entity_count
		FROM documents ORDER BY upload_date, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	entries := make([]ExportEntry, 0)
	for rows.Next() {
		var entry ExportEntry
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.PatientID, &entry.DocumentType,
			&entry.UploadDate, &entry.SourceLocation, &entry.EntityCount); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
