// Package embedding mirrors the Chains tree into an Embeddings tree:
// each row's text column is run through a sentence-transformer and the
// resulting vector appended to the row.
package embedding

import "github.com/oniz93/business-finder/record"

// EmbeddedRow is the Embeddings-tree output row: every input column
// plus the embedding vector, kept as a single repeated float column
// rather than one scalar column per dimension, since the embedding
// dimension is a runtime model property and the columnar writer needs
// a row type fixed at compile time.
type EmbeddedRow struct {
	record.Record
	Embedding []float32 `parquet:"embedding"`
}

// textColumns lists the candidate text columns in priority order; the
// first non-empty one on a row is what gets embedded.
var textColumns = []string{"body", "text", "selftext", "content", "message"}

// TextOf returns the first non-empty candidate text field on rec.
// Record only carries "body" among the named candidates; the lookup is
// kept as a priority list so any text-bearing column a future Record
// gains slots in without changing callers.
func TextOf(rec record.Record) string {
	for _, col := range textColumns {
		if col == "body" && rec.Body != "" {
			return rec.Body
		}
	}
	return ""
}
