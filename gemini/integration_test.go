package gemini_test

import (
	"context"
	"testing"

	"github.com/datar-psa/mtdetect/gemini"
	"github.com/datar-psa/mtdetect/internal/testutils"
)

// TestTranslator_Integration translates with real Gemini API calls.
// It replays hypert recordings from testdata/translator.
func TestTranslator_Integration(t *testing.T) {
	ctx := context.Background()
	llmGen := testutils.NewGeminiGenerator(t, testutils.DefaultGeminiTestConfig("translator"), "publishers/google/models/gemini-2.5-flash")

	tr, err := gemini.NewTranslator(llmGen, gemini.TranslatorOptions{SourceLang: "ru", TargetLang: "en"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := tr.Translate(ctx, []string{"добрый день", "извините"})
	if err != nil {
		t.Fatalf("Translate() unexpected error = %v", err)
	}
	if len(got) != 2 || got[0] == "" || got[1] == "" {
		t.Errorf("Translate() = %q, want two translations", got)
	}
}

// TestEmbedder_EmbedTokens_Integration embeds tokens with the Gemini
// embeddings API.
func TestEmbedder_EmbedTokens_Integration(t *testing.T) {
	ctx := context.Background()
	embedder := testutils.NewGeminiEmbedder(t, testutils.DefaultGeminiTestConfig("embedding"), "text-embedding-005")

	vecs, err := embedder.EmbedTokens(ctx, []string{"библиотеку", "книги", "."})
	if err != nil {
		t.Fatalf("EmbedTokens() unexpected error = %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("EmbedTokens() returned %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			t.Errorf("token %d has empty vector", i)
		}
	}
}

// TestLemmatizer_Integration lemmatizes Russian words with Cloud Natural
// Language.
func TestLemmatizer_Integration(t *testing.T) {
	ctx := context.Background()
	l := testutils.NewLemmatizer(t, testutils.DefaultGeminiTestConfig("lemmatizer"), "ru")

	got, err := l.Stem(ctx, []string{"читать", "книги"})
	if err != nil {
		t.Fatalf("Stem() unexpected error = %v", err)
	}
	if got[1] != "книга" {
		t.Errorf("Stem() = %q, want lemma книга", got)
	}
}
