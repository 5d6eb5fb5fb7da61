package chat

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// promptTemplate grounds the model strictly in the retrieved context.
// %[1]s is the cannot-answer message, %[2]s the context block, %[3]s the question.
const promptTemplate = `You are a question answering assistant. Answer the question using ONLY the context below.
If the context does not contain the information needed to answer, reply exactly with: %[1]s

Context:
%[2]s

Question: %[3]s

Answer:`

// buildPrompt composes the grounded prompt from retrieved records in
// retrieval order.
func buildPrompt(query, cannotAnswer string, records []domain.ScoredRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(r.Record.Content)
	}
	return fmt.Sprintf(promptTemplate, cannotAnswer, b.String(), query)
}

// collectSources returns the distinct source names in retrieval order with
// content previews.
func collectSources(records []domain.ScoredRecord) []domain.SourceRef {
	seen := make(map[string]bool, len(records))
	sources := make([]domain.SourceRef, 0, len(records))
	for _, r := range records {
		if seen[r.Record.Source] {
			continue
		}
		seen[r.Record.Source] = true
		sources = append(sources, domain.SourceRef{
			Source:  r.Record.Source,
			Preview: domain.Truncate(r.Record.Content, domain.SourcePreviewLen),
		})
	}
	return sources
}
