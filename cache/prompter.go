package cache

import (
	"context"

	"github.com/hupe1980/agentweave/pipeline"
)

// Prompter memoizes a pipeline.Prompter by prompt text.
type Prompter struct {
	next  pipeline.Prompter
	cache *Keyed[string]
}

// NewPrompter wraps next.
func NewPrompter(next pipeline.Prompter, optFns ...func(o *Options)) (*Prompter, error) {
	c, err := New[string](optFns...)
	if err != nil {
		return nil, err
	}
	return &Prompter{next: next, cache: c}, nil
}

// Prompt implements pipeline.Prompter.
func (p *Prompter) Prompt(ctx context.Context, text string) (string, error) {
	return p.cache.Get(ctx, text, func(ctx context.Context) (string, error) {
		return p.next.Prompt(ctx, text)
	})
}

// Stats returns the cache counters.
func (p *Prompter) Stats() Stats { return p.cache.Stats() }
