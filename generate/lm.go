package generate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/datar-psa/mtdetect/api"
)

// MinParagraphLength is the number of characters a paragraph needs to be
// worth continuing.
const MinParagraphLength = 100

// DefaultSentenceNum is the prefix length used by GenerateLanguageModel.
const DefaultSentenceNum = 2

// CheckParagraph reports whether paragraph is long enough to continue.
func CheckParagraph(paragraph string) bool {
	return utf8.RuneCountInString(paragraph) >= MinParagraphLength
}

// RetrievePrefix returns the first sentenceNum sentences of paragraph,
// splitting on periods.
func RetrievePrefix(paragraph string, sentenceNum int) string {
	var sentences []string
	for _, s := range strings.Split(strings.TrimSpace(paragraph), ".") {
		if s == "" {
			continue
		}
		sentences = append(sentences, strings.TrimSpace(s)+".")
	}
	if sentenceNum < len(sentences) {
		sentences = sentences[:max(sentenceNum, 0)]
	}
	return strings.Join(sentences, " ")
}

// LMOptions configures GenerateLanguageModel.
type LMOptions struct {
	// SentenceNum is the number of sentences kept as the prompt (default 2)
	SentenceNum int
	// Size keeps only the first Size paragraphs (0 keeps all)
	Size int
	// SkipShort drops paragraphs that fail CheckParagraph
	SkipShort bool
}

const continuationPrompt = `Continue the following text in the same language and style. Write one paragraph and output only the continuation.

%s`

// GenerateLanguageModel continues the prefix of every paragraph with llm.
// The result is aligned with the paragraphs that were kept.
func GenerateLanguageModel(ctx context.Context, llm api.LLMGenerator, paragraphs []string, opts LMOptions) ([]string, error) {
	if llm == nil {
		return nil, fmt.Errorf("LLM generator is required")
	}
	if opts.SentenceNum == 0 {
		opts.SentenceNum = DefaultSentenceNum
	}
	if opts.Size > 0 && opts.Size < len(paragraphs) {
		paragraphs = paragraphs[:opts.Size]
	}

	var out []string
	for i, p := range paragraphs {
		if opts.SkipShort && !CheckParagraph(p) {
			continue
		}
		prefix := RetrievePrefix(p, opts.SentenceNum)
		text, err := llm.Generate(ctx, fmt.Sprintf(continuationPrompt, prefix))
		if err != nil {
			return nil, fmt.Errorf("paragraph %d: %w: %v", i, api.ErrLLMGenerationFailed, err)
		}
		out = append(out, prefix+" "+strings.TrimSpace(text))
	}
	return out, nil
}
