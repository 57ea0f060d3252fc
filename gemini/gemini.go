package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/datar-psa/mtdetect/api"
)

// Generator wraps a genai.Client to implement the LLMGenerator interface
type Generator struct {
	client    *genai.Client
	modelName string
}

// NewGenerator creates a new Gemini generator
// client: genai.Client from google.golang.org/genai
// modelName: the model to use (e.g., "gemini-2.5-flash")
func NewGenerator(client *genai.Client, modelName string) *Generator {
	return &Generator{
		client:    client,
		modelName: modelName,
	}
}

// Model returns the model name
func (g *Generator) Model() string { return g.modelName }

// Generate implements LLMGenerator.Generate
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.modelName,
		[]*genai.Content{userContent(prompt)},
		&genai.GenerateContentConfig{},
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}

	if resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no parts in response")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// StructuredGenerate implements LLMGenerator.StructuredGenerate
// The response is constrained to application/json matching schema.
func (g *Generator) StructuredGenerate(ctx context.Context, prompt string, schema map[string]interface{}) (map[string]interface{}, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.modelName,
		[]*genai.Content{userContent(prompt)},
		&genai.GenerateContentConfig{
			Temperature:        genai.Ptr[float32](0),
			ResponseMIMEType:   "application/json",
			ResponseJsonSchema: schema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("no content in response")
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to parse structured response: %w", err)
	}
	return out, nil
}

func userContent(prompt string) *genai.Content {
	return &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
		},
	}
}

// Verify that Generator implements LLMGenerator
var _ api.LLMGenerator = (*Generator)(nil)
