// Package retrieval indexes a workspace into a local vector store and
// answers semantic code queries for the agent and its prompts.
package retrieval

import "context"

// Hit is one ranked result from a semantic query.
type Hit struct {
	File    string  `json:"file"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Line    int     `json:"line"`
}

// Retriever answers semantic queries and symbol dependency lookups.
type Retriever interface {
	// Query returns the topK chunks most similar to text, best first.
	Query(ctx context.Context, text string, topK int) ([]Hit, error)
	// GraphDeps returns the symbols the named symbol's defining file
	// references. Unknown symbols yield an empty slice.
	GraphDeps(symbol string) []string
}
