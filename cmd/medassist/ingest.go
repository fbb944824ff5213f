// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/medassist-engine/internal/extract"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Extract and index a medical document",
	Long: `Ingest reads a document file, extracts its text and medical entities,
classifies the document type, and stores it in the local index for
retrieval.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	patientID, _ := cmd.Flags().GetString("patient")

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	result, err := eng.extractor.Extract(ctx, content, path)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}

	doc := types.Document{
		ID:             uuid.NewString(),
		Title:          title,
		ExtractedText:  result.Text,
		Entities:       result.Entities,
		SourceLocation: path,
		PatientID:      patientID,
		UploadedAt:     time.Now().UTC(),
		DocumentType:   extract.ClassifyDocument(title, result.Text),
	}
	if err := eng.index.PutDocument(ctx, doc); err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	fmt.Printf("Indexed %s\n", path)
	fmt.Printf("  id:         %s\n", doc.ID)
	fmt.Printf("  title:      %s\n", doc.Title)
	fmt.Printf("  type:       %s\n", doc.DocumentType)
	fmt.Printf("  confidence: %.1f\n", result.Confidence)
	fmt.Printf("  entities:   %d\n", len(result.Entities))
	return nil
}

func init() {
	ingestCmd.Flags().String("title", "", "document title (default: file name)")
	ingestCmd.Flags().String("patient", "", "patient identifier to attach to the document")
	ingestCmd.Flags().Bool("json", false, "output the indexed document as JSON")

	rootCmd.AddCommand(ingestCmd)
}
