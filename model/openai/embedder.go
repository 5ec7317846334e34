package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
)

var errNoEmbedding = errors.New("no embedding returned")

// EmbedderOptions configure the embeddings adapter.
type EmbedderOptions struct {
	Model   string
	APIKey  string
	BaseURL string
}

// Embedder turns text into vectors via the OpenAI Embeddings API.
type Embedder struct {
	client *openai.Client
	model  string
}

// NewEmbedder creates an Embedder using text-embedding-3-small by default.
func NewEmbedder(optFns ...func(o *EmbedderOptions)) *Embedder {
	opts := EmbedderOptions{Model: openai.EmbeddingModelTextEmbedding3Small}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := openai.NewClient(clientOptions(Options{APIKey: opts.APIKey, BaseURL: opts.BaseURL})...)

	return &Embedder{client: &client, model: opts.Model}
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: e.model,
	})
	if err != nil {
		return nil, mapError(ctx, err)
	}

	if len(resp.Data) == 0 {
		return nil, mapError(ctx, errNoEmbedding)
	}

	return resp.Data[0].Embedding, nil
}
