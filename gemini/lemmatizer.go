package gemini

import (
	"context"
	"fmt"
	"strings"

	language "cloud.google.com/go/language/apiv1"
	languagepb "cloud.google.com/go/language/apiv1/languagepb"

	"github.com/datar-psa/mtdetect/api"
)

type analyzeSyntaxFunc func(ctx context.Context, req *languagepb.AnalyzeSyntaxRequest) (*languagepb.AnalyzeSyntaxResponse, error)

// Lemmatizer implements Stemmer using the Cloud Natural Language syntax
// analysis: every word is replaced by its lowercased lemma.
type Lemmatizer struct {
	analyze  analyzeSyntaxFunc
	language string
}

// NewLemmatizer creates a lemmatizer using a preconfigured *language.Client
// (auth handled by caller). lang is an optional ISO-639-1 hint such as "ru".
func NewLemmatizer(client *language.Client, lang string) *Lemmatizer {
	return &Lemmatizer{
		analyze: func(ctx context.Context, req *languagepb.AnalyzeSyntaxRequest) (*languagepb.AnalyzeSyntaxResponse, error) {
			return client.AnalyzeSyntax(ctx, req)
		},
		language: lang,
	}
}

// Stem analyzes words as one whitespace-joined document and maps each
// returned token back to its word by byte offset. Words the API does not
// tokenize on their own keep their surface form.
func (l *Lemmatizer) Stem(ctx context.Context, words []string) ([]string, error) {
	if l.analyze == nil {
		return nil, fmt.Errorf("language client is required")
	}
	out := make([]string, len(words))
	if len(words) == 0 {
		return out, nil
	}

	offsets := make(map[int32]int, len(words))
	var doc strings.Builder
	for i, w := range words {
		if i > 0 {
			doc.WriteByte(' ')
		}
		offsets[int32(doc.Len())] = i
		doc.WriteString(w)
		out[i] = strings.ToLower(w)
	}

	req := &languagepb.AnalyzeSyntaxRequest{
		Document: &languagepb.Document{
			Type:     languagepb.Document_PLAIN_TEXT,
			Source:   &languagepb.Document_Content{Content: doc.String()},
			Language: l.language,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	}
	resp, err := l.analyze(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("analyze syntax failed: %w", err)
	}

	for _, tok := range resp.GetTokens() {
		i, ok := offsets[tok.GetText().GetBeginOffset()]
		if !ok || tok.GetText().GetContent() != words[i] {
			continue
		}
		if lemma := tok.GetLemma(); lemma != "" {
			out[i] = strings.ToLower(lemma)
		}
	}
	return out, nil
}

var _ api.Stemmer = (*Lemmatizer)(nil)
