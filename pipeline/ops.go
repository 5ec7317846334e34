package pipeline

import (
	"context"
	"text/template"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/internal/util"
	"github.com/hupe1980/agentweave/retrieval"
)

// Prompter is anything that answers a text prompt, such as *agent.Agent.
type Prompter interface {
	Prompt(ctx context.Context, text string) (string, error)
}

// Extractor produces a typed value from text, such as *agent.Extractor[T].
type Extractor[T any] interface {
	Extract(ctx context.Context, text string) (T, error)
}

// Prompt returns a step that sends its input to p.
func Prompt(p Prompter) Step[string, string] {
	return Func[string, string](p.Prompt)
}

// Extract returns a step that extracts a T from its input.
func Extract[T any](e Extractor[T]) Step[string, T] {
	return Func[string, T](e.Extract)
}

// Lookup returns a step that retrieves the top k documents for its input.
func Lookup(r retrieval.Retriever, k int) Step[string, []core.Document] {
	return Func[string, []core.Document](func(ctx context.Context, query string) ([]core.Document, error) {
		return r.TopK(ctx, query, k)
	})
}

// Template compiles text once and returns a step rendering it with its
// input as data.
func Template[I any](text string) (Step[I, string], error) {
	tmpl, err := util.ParseTemplate("pipeline", text)
	if err != nil {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "template", Err: err}
	}

	return templateStep[I]{tmpl: tmpl}, nil
}

type templateStep[I any] struct {
	tmpl *template.Template
}

func (s templateStep[I]) Apply(_ context.Context, in I) (string, error) {
	return util.Execute(s.tmpl, in)
}
