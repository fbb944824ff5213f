// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the document index inventory to YAML or JSON",
	Long: `Export writes an inventory of the indexed documents (ids, titles,
types, patients, entity counts) to export.yaml or export.json in the
output directory. Document text is not included.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out")

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	switch format {
	case "yaml", "":
		if err := eng.index.ExportYAML(ctx, outDir); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", filepath.Join(outDir, "export.yaml"))
	case "json":
		if err := eng.index.ExportJSON(ctx, outDir); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", filepath.Join(outDir, "export.json"))
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	return nil
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().String("out", ".", "output directory")

	rootCmd.AddCommand(exportCmd)
}
