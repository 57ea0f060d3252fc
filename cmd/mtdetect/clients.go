package main

import (
	"context"
	"fmt"
	"net/http"

	language "cloud.google.com/go/language/apiv1"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"github.com/datar-psa/mtdetect/config"
	"github.com/datar-psa/mtdetect/gemini"
)

// newGenaiClient returns nil when Gemini is not configured.
func newGenaiClient(ctx context.Context, cfg config.GeminiConfig) (*genai.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	cc := &genai.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	} else {
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// newLemmatizer returns a Cloud Natural Language stemmer, or nil when it is
// disabled. The returned close func is never nil.
func newLemmatizer(ctx context.Context, cfg config.GeminiConfig, lang string) (*gemini.Lemmatizer, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Lemmatizer {
		return nil, noop, nil
	}
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.Project != "":
		opts = append(opts, option.WithQuotaProject(cfg.Project))
	}
	client, err := language.NewClient(ctx, opts...)
	if err != nil {
		return nil, noop, fmt.Errorf("create language client: %w", err)
	}
	return gemini.NewLemmatizer(client, lang), client.Close, nil
}
