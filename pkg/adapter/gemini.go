package adapter

import (
	"context"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the boundary to the black-box LLM and embedding services. The
// completion side takes a rendered prompt and returns free text with no
// structured-output guarantee; the embedding side converts text to a
// fixed-length vector. Neither retries internally.
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Embedding(ctx context.Context, text string, dim int) ([]float32, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(model.ErrServiceUnavailable, "failed to generate content", goerr.V("cause", err.Error()))
	}
	return resp, nil
}

func (g *GeminiClient) Embedding(ctx context.Context, text string, dim int) ([]float32, error) {
	outputDim := int32(dim)
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, goerr.Wrap(model.ErrServiceUnavailable, "failed to embed content", goerr.V("cause", err.Error()))
	}

	if len(resp.Embeddings) != 1 || resp.Embeddings[0] == nil {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "expected exactly one embedding",
			goerr.V("count", len(resp.Embeddings)))
	}

	vec := resp.Embeddings[0].Values
	if dim > 0 && len(vec) != dim {
		return nil, goerr.Wrap(model.ErrMalformedResponse, "embedding dimensionality mismatch",
			goerr.V("want", dim), goerr.V("got", len(vec)))
	}

	return vec, nil
}
