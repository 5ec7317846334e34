// Package retrieval defines the lookup boundary used for dynamic context and
// ships an in-memory lexical index plus an embedding-backed index.
package retrieval

import (
	"context"
	"sort"

	"github.com/hupe1980/agentweave/core"
)

// Retriever returns up to k documents relevant to query, best first.
type Retriever interface {
	TopK(ctx context.Context, query string, k int) ([]core.Document, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, query string, k int) ([]core.Document, error)

// TopK implements Retriever.
func (f RetrieverFunc) TopK(ctx context.Context, query string, k int) ([]core.Document, error) {
	return f(ctx, query, k)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SortByScore orders docs by descending score. Equal scores keep their
// input order.
func SortByScore(docs []core.Document) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
}

// Truncate returns at most k documents; k <= 0 yields none.
func Truncate(docs []core.Document, k int) []core.Document {
	if k <= 0 {
		return nil
	}
	if len(docs) > k {
		return docs[:k]
	}
	return docs
}
