// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medassist-engine/internal/session"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Ask a question about indexed medical documents",
	Long: `Query retrieves relevant evidence from the local index, asks the
generation backend, and prints the grounded answer with its sources.

Use --session with --user to continue a conversation; the previous turns
feed into the prompt and the new turn is persisted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	input := session.Input{
		Query:   strings.Join(args, " "),
		Filters: filtersFromFlags(cmd),
	}
	input.SessionID, _ = cmd.Flags().GetString("session")
	input.UserID, _ = cmd.Flags().GetString("user")

	result, err := eng.orchestrator.ProcessTurn(context.Background(), input)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.Answer)
	if result.ErrorMessage != "" {
		fmt.Fprintf(os.Stderr, "error: %s\n", result.ErrorMessage)
	}
	if len(result.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for _, src := range result.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	if result.SessionID != "" {
		fmt.Printf("\nsession: %s\n", result.SessionID)
	}
	return nil
}

// filtersFromFlags maps the query flags onto retrieval filter keys.
func filtersFromFlags(cmd *cobra.Command) map[string]string {
	filters := make(map[string]string)
	put := func(key, flag string) {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			filters[key] = v
		}
	}
	put(types.FilterDocumentID, "document-id")
	put(types.FilterDocumentName, "document")
	put(types.FilterPatientName, "patient")
	put(types.FilterDateFrom, "from")
	put(types.FilterDateTo, "to")
	if len(filters) == 0 {
		return nil
	}
	return filters
}

func init() {
	queryCmd.Flags().String("document-id", "", "restrict to a document ID")
	queryCmd.Flags().String("document", "", "restrict to a document name")
	queryCmd.Flags().String("patient", "", "restrict to a patient")
	queryCmd.Flags().String("from", "", "evidence date range start (YYYY-MM-DD)")
	queryCmd.Flags().String("to", "", "evidence date range end (YYYY-MM-DD)")
	queryCmd.Flags().String("session", "", "session ID to continue")
	queryCmd.Flags().String("user", "", "user ID owning the session")
	queryCmd.Flags().Bool("json", false, "output the canonical result as JSON")

	rootCmd.AddCommand(queryCmd)
}
