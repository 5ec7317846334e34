package retrieval

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hupe1980/agentweave/core"
)

// EmbeddingIndex ranks in-memory documents by cosine similarity between the
// query embedding and the document embeddings.
type EmbeddingIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	docs    []core.Document
	vectors [][]float64
}

// NewEmbeddingIndex creates an empty index backed by embedder.
func NewEmbeddingIndex(embedder Embedder) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: embedder}
}

// Add embeds and stores documents. Nothing is stored when any embedding
// fails.
func (idx *EmbeddingIndex) Add(ctx context.Context, docs ...core.Document) error {
	vectors := make([][]float64, len(docs))
	for i, d := range docs {
		v, err := idx.embedder.Embed(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("embed document %d: %w", i, err)
		}
		vectors[i] = v
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, d := range docs {
		if d.ID == "" {
			d.ID = core.NewID()
		}
		idx.docs = append(idx.docs, d)
		idx.vectors = append(idx.vectors, vectors[i])
	}

	return nil
}

// TopK implements Retriever.
func (idx *EmbeddingIndex) TopK(ctx context.Context, query string, k int) ([]core.Document, error) {
	if k <= 0 {
		return nil, nil
	}

	qv, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx.mu.RLock()
	hits := make([]core.Document, len(idx.docs))
	for i, d := range idx.docs {
		d.Score = Cosine(qv, idx.vectors[i])
		hits[i] = d
	}
	idx.mu.RUnlock()

	SortByScore(hits)

	return Truncate(hits, k), nil
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
