package catalog

import (
	"context"
	"math"
	"sort"

	"github.com/m-mizutani/cygnet/pkg/embedding"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Retriever ranks catalogue examples by similarity to a user question.
type Retriever struct {
	catalog  *Catalog
	embedder *embedding.Embedder
}

// NewRetriever creates a Retriever over the given catalogue.
func NewRetriever(catalog *Catalog, embedder *embedding.Embedder) *Retriever {
	return &Retriever{catalog: catalog, embedder: embedder}
}

// Retrieve embeds the question and returns the k highest-scoring examples in
// descending score order. Ties keep catalogue order so results are
// deterministic for an unchanged store. An empty catalogue yields an empty
// result, not an error; the generator handles zero-shot prompting.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]model.ScoredExample, error) {
	if k <= 0 || r.catalog.Len() == 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed question")
	}

	scored := make([]model.ScoredExample, 0, r.catalog.Len())
	for _, ex := range r.catalog.examples {
		scored = append(scored, model.ScoredExample{
			Example: ex,
			Score:   cosineSimilarity(vec, ex.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
