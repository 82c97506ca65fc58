// Package search exposes the semantic code index as an agent tool.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/barqworks/barqcoder/kernel/retrieval"
	"github.com/barqworks/barqcoder/kernel/tool"
)

const (
	// ToolName is the semantic search tool dispatch key.
	ToolName = "barq_search"

	defaultTopK = 5
)

// Searcher answers ranked semantic queries. The retrieval store
// satisfies it.
type Searcher interface {
	QueryLang(ctx context.Context, text string, topK int, lang string) ([]retrieval.Hit, error)
}

// Args is the tool's argument shape. The declaration schema is derived
// from it: fields tagged omitempty are optional.
type Args struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	FilterLang string `json:"filter_lang,omitempty"`
}

type hit struct {
	File    string  `json:"file"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Line    int     `json:"line"`
}

type result struct {
	Hits  []hit `json:"hits"`
	Count int   `json:"count"`
}

func New(searcher Searcher) (tool.Tool, error) {
	run := func(ctx context.Context, args Args) (result, error) {
		if strings.TrimSpace(args.Query) == "" {
			return result{}, fmt.Errorf("tool: %s requires a query", ToolName)
		}
		topK := args.TopK
		if topK <= 0 {
			topK = defaultTopK
		}
		hits, err := searcher.QueryLang(ctx, args.Query, topK, args.FilterLang)
		if err != nil {
			return result{}, err
		}
		out := result{Hits: make([]hit, 0, len(hits)), Count: len(hits)}
		for _, h := range hits {
			out.Hits = append(out.Hits, hit{File: h.File, Content: h.Content, Score: h.Score, Line: h.Line})
		}
		return out, nil
	}
	return tool.NewFunction(ToolName,
		"Search the indexed workspace for code semantically related to a query.",
		run)
}
