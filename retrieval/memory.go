package retrieval

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/agentweave/core"
)

// InMemoryIndex is a lexical retriever over documents held in memory. A
// document scores the fraction of distinct query terms it contains; equal
// scores keep insertion order. Documents without any matching term are not
// returned.
type InMemoryIndex struct {
	mu    sync.RWMutex
	docs  []core.Document
	terms []map[string]struct{}
}

// NewInMemoryIndex creates an index holding docs in order.
func NewInMemoryIndex(docs ...core.Document) *InMemoryIndex {
	idx := &InMemoryIndex{}
	idx.Add(docs...)
	return idx
}

// Add appends documents. Missing ids are generated.
func (idx *InMemoryIndex) Add(docs ...core.Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, d := range docs {
		if d.ID == "" {
			d.ID = core.NewID()
		}
		idx.docs = append(idx.docs, d)
		idx.terms = append(idx.terms, termSet(d.Content))
	}
}

// Len returns the number of documents.
func (idx *InMemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// TopK implements Retriever.
func (idx *InMemoryIndex) TopK(ctx context.Context, query string, k int) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := termSet(query)
	if len(q) == 0 || k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var hits []core.Document
	for i, d := range idx.docs {
		var matched int
		for term := range q {
			if _, ok := idx.terms[i][term]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		d.Score = float64(matched) / float64(len(q))
		hits = append(hits, d)
	}

	SortByScore(hits)

	return Truncate(hits, k), nil
}

func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
