// Package embedding wraps the embedding service boundary: ordered texts in,
// one fixed-dimensionality vector per text out.
package embedding

import (
	"context"
	"time"

	"github.com/m-mizutani/cygnet/pkg/adapter"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Embedder converts text into vectors of a fixed dimensionality D. It does
// not retry; callers decide.
type Embedder struct {
	gemini      adapter.Gemini
	dim         int
	timeout     time.Duration
	concurrency int
}

// Option is a functional option for Embedder
type Option func(*Embedder)

// WithTimeout bounds each embedding service call
func WithTimeout(d time.Duration) Option {
	return func(e *Embedder) {
		e.timeout = d
	}
}

// WithConcurrency bounds the batch fan-out
func WithConcurrency(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an Embedder producing vectors of the given dimensionality.
func New(gemini adapter.Gemini, dim int, opts ...Option) *Embedder {
	e := &Embedder{
		gemini:      gemini,
		dim:         dim,
		timeout:     30 * time.Second,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the fixed vector dimensionality D.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vec, err := e.gemini.Embedding(ctx, text, e.dim)
	if err != nil {
		return nil, err
	}
	if len(vec) != e.dim {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "embedding dimensionality mismatch",
			goerr.V("want", e.dim), goerr.V("got", len(vec)))
	}
	return vec, nil
}

// EmbedBatch returns one vector per input text, order-preserving. Returns nil
// for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return goerr.Wrap(err, "failed to embed batch item", goerr.V("index", i))
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
