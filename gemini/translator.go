package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/datar-psa/mtdetect/api"
)

// TranslatorOptions configures the LLM translator
type TranslatorOptions struct {
	// SourceLang and TargetLang are language codes, e.g. "fr" and "ru"
	SourceLang string
	TargetLang string
	// RequestsPerSecond limits generation calls; zero means unlimited
	RequestsPerSecond float64
	// Burst is the limiter burst size (default 1)
	Burst int
}

// Translator translates batches of sentences with an LLM, one structured
// generation request per batch.
type Translator struct {
	llm     api.LLMGenerator
	opts    TranslatorOptions
	limiter *rate.Limiter
}

// NewTranslator creates a translator for a fixed language pair.
func NewTranslator(llm api.LLMGenerator, opts TranslatorOptions) (*Translator, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm generator is required")
	}
	if opts.SourceLang == "" || opts.TargetLang == "" {
		return nil, fmt.Errorf("source and target languages are required")
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Translator{
		llm:     llm,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
	}, nil
}

var translationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"translations": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"translations"},
}

// Translate implements api.Translator
func (t *Translator) Translate(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	numbered, err := json.Marshal(texts)
	if err != nil {
		return nil, err
	}
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Translate each sentence of the JSON array below from %s to %s.\n", t.opts.SourceLang, t.opts.TargetLang)
	prompt.WriteString("Return exactly one translation per sentence, in the same order, without commentary.\n\n")
	prompt.Write(numbered)

	resp, err := t.llm.StructuredGenerate(ctx, prompt.String(), translationSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrLLMGenerationFailed, err)
	}
	raw, ok := resp["translations"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("translations missing from response")
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("got %d translations for %d sentences", len(raw), len(texts))
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("translation %d is %T, want string", i, v)
		}
		out[i] = strings.TrimSpace(s)
	}
	return out, nil
}

var _ api.Translator = (*Translator)(nil)
