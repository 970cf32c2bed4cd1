// Package catalog holds the few-shot example store: a fixed catalogue of
// (question, query) pairs with embeddings, loaded once at process start and
// never mutated afterwards.
package catalog

import (
	"context"
	"os"

	"github.com/m-mizutani/cygnet/pkg/embedding"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Catalog is the immutable example store. Near-duplicate entries are
// acceptable; ranking handles redundancy.
type Catalog struct {
	examples []*model.Example
}

type catalogFile struct {
	Examples []*model.Example `yaml:"examples"`
}

// Load reads a catalogue YAML file. Entries may or may not carry precomputed
// embeddings; call EnsureEmbeddings before retrieval.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V("path", path))
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse catalog file", goerr.V("path", path))
	}

	for i, ex := range file.Examples {
		if ex.Question == "" || ex.Query == "" {
			return nil, goerr.New("catalog entry missing question or query", goerr.V("index", i))
		}
	}

	return &Catalog{examples: file.Examples}, nil
}

// New creates a catalogue from already-built examples. Mainly for tests.
func New(examples []*model.Example) *Catalog {
	return &Catalog{examples: examples}
}

// Len returns the number of examples.
func (c *Catalog) Len() int {
	return len(c.examples)
}

// EnsureEmbeddings fills in embeddings for entries that lack one. Entries
// with a precomputed vector are left untouched.
func (c *Catalog) EnsureEmbeddings(ctx context.Context, embedder *embedding.Embedder) error {
	var missing []int
	var texts []string
	for i, ex := range c.examples {
		if len(ex.Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, ex.Question)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return goerr.Wrap(err, "failed to embed catalog questions", goerr.V("count", len(texts)))
	}

	for n, i := range missing {
		c.examples[i].Embedding = vecs[n]
	}
	return nil
}

// Save writes the catalogue, including embeddings, back to a YAML file. Used
// by the `catalog embed` command to precompute vectors.
func (c *Catalog) Save(path string) error {
	raw, err := yaml.Marshal(&catalogFile{Examples: c.examples})
	if err != nil {
		return goerr.Wrap(err, "failed to marshal catalog")
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return goerr.Wrap(err, "failed to write catalog file", goerr.V("path", path))
	}
	return nil
}
