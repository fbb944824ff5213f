// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble builds the bounded context block and full prompt for the
// generative model from retrieved evidence and recent conversation turns.
package assemble

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

const (
	// maxSnippets caps how many evidence snippets enter the context block.
	maxSnippets = 3

	// maxTurns caps how many prior conversation turns enter the prompt.
	maxTurns = 3

	// NoEvidenceSentinel is the context block emitted when retrieval found
	// nothing. The exact string is part of the contract.
	NoEvidenceSentinel = "No relevant medical documents found."

	// noHistorySentinel replaces the conversation block for a fresh session.
	noHistorySentinel = "No prior conversation."
)

// promptTmpl is the fixed instruction template sent to the generative model.
// The model is told to answer strictly from the supplied context and to say
// the information is not available rather than guess.
var promptTmpl = template.Must(template.New("medical").Parse(`You are a medical AI assistant helping healthcare professionals analyze patient documents.
Provide clear, accurate, and concise answers based strictly on the given context.
If the information is not available in the context, say so instead of guessing.

Context from patient medical records:
{{.Context}}

Previous conversation:
{{.History}}

Current question:
User: {{.Query}}

Assistant:`))

// Assembled holds the context block and the full prompt for one turn.
type Assembled struct {
	ContextBlock string
	PromptText   string
}

// BuildContext renders the evidence and conversation history into a prompt.
// It is a pure string-assembly step and never fails: at worst it degrades to
// a plain concatenation of its inputs.
func BuildContext(snippets []types.EvidenceSnippet, recentTurns []types.ConversationTurn, query string) Assembled {
	contextBlock := renderEvidence(snippets)
	history := renderHistory(recentTurns)

	var sb strings.Builder
	err := promptTmpl.Execute(&sb, struct {
		Context string
		History string
		Query   string
	}{contextBlock, history, query})
	if err != nil {
		// Unreachable with string inputs, but the contract forbids failing.
		return Assembled{
			ContextBlock: contextBlock,
			PromptText:   contextBlock + "\n\n" + history + "\n\nUser: " + query,
		}
	}

	return Assembled{ContextBlock: contextBlock, PromptText: sb.String()}
}

// renderEvidence formats the top snippets in retrieval order, or the
// no-evidence sentinel.
func renderEvidence(snippets []types.EvidenceSnippet) string {
	if len(snippets) == 0 {
		return NoEvidenceSentinel
	}
	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}

	parts := make([]string, 0, len(snippets))
	for i, s := range snippets {
		parts = append(parts, fmt.Sprintf("Document %d: %s\n%s", i+1, s.Title, s.Excerpt))
	}
	return strings.Join(parts, "\n\n")
}

// renderHistory formats the last turns as role-prefixed lines, or the
// fresh-session sentinel.
func renderHistory(turns []types.ConversationTurn) string {
	if len(turns) == 0 {
		return noHistorySentinel
	}
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	var lines []string
	for _, t := range turns {
		lines = append(lines, "user: "+t.Query.Text)
		lines = append(lines, "assistant: "+t.Response.Text)
	}
	return strings.Join(lines, "\n")
}
