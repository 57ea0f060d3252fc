package api

import (
	"context"

	"github.com/datar-psa/mtdetect/table"
)

// Score represents the result of scoring a single record
type Score struct {
	// Name identifies the scorer that produced this result
	Name string
	// Score is the metric value on the metric's native scale
	// (e.g. [0,100] for BLEU, [0,1] for METEOR)
	Score float64
	// Metadata contains additional information about the scoring process
	Metadata map[string]any
	// Error contains any error that occurred during scoring
	Error error
}

// ScoreInputs carries inputs for scoring a single record.
//
// Fields usage conventions:
// - Output:   the machine translation being scored (required by every scorer)
// - Expected: the reference target translation (required by reference-based scorers)
// - Input:    the source sentence (used by source-aware scorers such as Comet)
type ScoreInputs struct {
	Output   string
	Expected string
	Input    string
}

// Scorer evaluates a single record
type Scorer interface {
	// Score evaluates the output and returns a score
	// in: container for output/expected/input depending on scorer needs
	Score(ctx context.Context, in ScoreInputs) Score
}

// Metric computes one score per row of a frame.
// Implementations return exactly frame.Len() values in row order and
// report a *table.MissingColumnError when a required column is absent.
type Metric interface {
	Name() string
	Compute(ctx context.Context, frame *table.Frame) ([]float64, error)
}

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates an embedding vector for the given text
	Embed(ctx context.Context, text string) ([]float64, error)
}

// TokenEmbedder embeds a sequence of tokens, one vector per token.
// A nil vector marks a token the model has no representation for.
type TokenEmbedder interface {
	EmbedTokens(ctx context.Context, tokens []string) ([][]float64, error)
}

// LLMGenerator is an interface for generating text using an LLM
// A Gemini implementation is provided in the gemini subpackage
type LLMGenerator interface {
	// Generate generates text based on the provided prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// StructuredGenerate generates structured data based on the provided prompt and JSON schema
	// schema must be a valid JSON schema (map[string]interface{})
	// Returns the generated data as a map[string]interface{} or an error
	StructuredGenerate(ctx context.Context, prompt string, schema map[string]interface{}) (map[string]interface{}, error)
}

// Translator translates a batch of texts for a fixed language pair.
// The result has the same length and order as texts.
type Translator interface {
	Translate(ctx context.Context, texts []string) ([]string, error)
}

// TranslatorFunc adapts a plain function to Translator.
type TranslatorFunc func(ctx context.Context, texts []string) ([]string, error)

// Translate calls f(ctx, texts).
func (f TranslatorFunc) Translate(ctx context.Context, texts []string) ([]string, error) {
	return f(ctx, texts)
}

// Regressor predicts a quality score for each input, in order.
// It is the model behind learned metrics such as BLEURT and Comet.
type Regressor interface {
	Predict(ctx context.Context, inputs []ScoreInputs) ([]float64, error)
}

// Stemmer reduces words to a normalized form used for METEOR stem matching.
// The result has the same length as words.
type Stemmer interface {
	Stem(ctx context.Context, words []string) ([]string, error)
}

// SynonymProvider lists synonyms of a lowercased word (METEOR synonym stage).
type SynonymProvider interface {
	Synonyms(ctx context.Context, word string) ([]string, error)
}
