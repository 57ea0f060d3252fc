package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/datar-psa/mtdetect/api"
)

// maxEmbedBatch is the number of contents sent per EmbedContent call.
const maxEmbedBatch = 100

// Embedder wraps a genai.Client to implement the Embedder and
// TokenEmbedder interfaces
type Embedder struct {
	client    *genai.Client
	modelName string
}

// NewEmbedder creates a new Gemini embedder
// client: genai.Client from google.golang.org/genai
// modelName: the embedding model to use (e.g., "text-embedding-005")
func NewEmbedder(client *genai.Client, modelName string) *Embedder {
	return &Embedder{
		client:    client,
		modelName: modelName,
	}
}

// Embed implements Embedder.Embed
// Note: This uses the Embedding API which is separate from the text generation API
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding vector")
	}
	return vecs[0], nil
}

// EmbedTokens implements TokenEmbedder.EmbedTokens by embedding every token
// as its own content, batched.
func (e *Embedder) EmbedTokens(ctx context.Context, tokens []string) ([][]float64, error) {
	out := make([][]float64, 0, len(tokens))
	for start := 0; start < len(tokens); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(tokens))
		vecs, err := e.embedBatch(ctx, tokens[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{
				{Text: text},
			},
		}
	}

	result, err := e.client.Models.EmbedContent(ctx, e.modelName, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([][]float64, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			continue
		}
		// Convert []float32 to []float64
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Verify that Embedder implements the embedding interfaces
var (
	_ api.Embedder      = (*Embedder)(nil)
	_ api.TokenEmbedder = (*Embedder)(nil)
)
