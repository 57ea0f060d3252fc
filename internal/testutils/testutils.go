package testutils

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	language "cloud.google.com/go/language/apiv1"
	"github.com/areknoster/hypert"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"github.com/datar-psa/mtdetect/gemini"
)

// ShouldUpdate returns true if tests should update cached HTTP responses
// Set UPDATE_TESTS=true environment variable to update cached responses
func ShouldUpdate() bool {
	return os.Getenv("UPDATE_TESTS") == "true"
}

// HypertClientConfig configures hypert client creation
type HypertClientConfig struct {
	TestDataDir string
	SubDir      string // Optional subdirectory for organizing test data
}

func (c HypertClientConfig) dir() string {
	if c.SubDir != "" {
		return filepath.Join(c.TestDataDir, c.SubDir)
	}
	return c.TestDataDir
}

// SkipWithoutRecordings skips the test when it would replay from an empty
// recording directory. Record with UPDATE_TESTS=true and Google default
// credentials.
func SkipWithoutRecordings(t *testing.T, config HypertClientConfig) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if ShouldUpdate() {
		return
	}
	entries, err := os.ReadDir(config.dir())
	if err != nil || len(entries) == 0 {
		t.Skipf("no recorded responses in %s; run with UPDATE_TESTS=true to record", config.dir())
	}
}

// NewHypertClient creates a new hypert client for caching HTTP requests
// This is useful for integration tests that make external API calls
func NewHypertClient(t *testing.T, config HypertClientConfig) *http.Client {
	namingScheme, err := hypert.NewContentHashNamingScheme(config.dir())
	if err != nil {
		t.Fatalf("failed to create naming scheme: %v", err)
	}

	hypertClient := hypert.TestClient(t, ShouldUpdate(),
		hypert.WithNamingScheme(namingScheme),
		hypert.WithRequestValidator(hypert.ComposedRequestValidator(
			hypert.PathValidator(),
			hypert.QueryParamsValidator(),
			hypert.MethodValidator(),
		)),
	)

	// If we're in record mode, wrap with OAuth2 authentication
	if ShouldUpdate() {
		ctx := context.Background()
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			t.Fatalf("failed to get default credentials: %v", err)
		}
		return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, hypertClient), creds.TokenSource)
	}

	return hypertClient
}

// GeminiTestConfig configures Gemini client creation for tests
type GeminiTestConfig struct {
	Project  string
	Location string
	SubDir   string // Subdirectory for hypert test data
}

// DefaultGeminiTestConfig returns a default configuration for Gemini testing
func DefaultGeminiTestConfig(subDir string) GeminiTestConfig {
	return GeminiTestConfig{
		Project:  os.Getenv("GOOGLE_PROJECT_ID"),
		Location: os.Getenv("GOOGLE_REGION"),
		SubDir:   subDir,
	}
}

func (c GeminiTestConfig) hypert() HypertClientConfig {
	return HypertClientConfig{TestDataDir: "testdata", SubDir: c.SubDir}
}

// NewGeminiClient creates a new Gemini client for testing with hypert caching
func NewGeminiClient(t *testing.T, config GeminiTestConfig) *genai.Client {
	SkipWithoutRecordings(t, config.hypert())
	ctx := context.Background()

	hypertClient := NewHypertClient(t, config.hypert())

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:    genai.BackendVertexAI,
		Project:    config.Project,
		Location:   config.Location,
		HTTPClient: hypertClient,
	})
	if err != nil {
		t.Fatalf("failed to create genai client: %v", err)
	}

	return genaiClient
}

// NewGeminiGenerator creates a new Gemini generator for testing
func NewGeminiGenerator(t *testing.T, config GeminiTestConfig, modelName string) *gemini.Generator {
	genaiClient := NewGeminiClient(t, config)
	return gemini.NewGenerator(genaiClient, modelName)
}

// NewGeminiEmbedder creates a new Gemini embedder for testing
func NewGeminiEmbedder(t *testing.T, config GeminiTestConfig, modelName string) *gemini.Embedder {
	genaiClient := NewGeminiClient(t, config)
	return gemini.NewEmbedder(genaiClient, modelName)
}

// NewLemmatizer creates a Cloud Natural Language lemmatizer over the REST
// transport so that hypert can record it.
func NewLemmatizer(t *testing.T, config GeminiTestConfig, lang string) *gemini.Lemmatizer {
	SkipWithoutRecordings(t, config.hypert())
	hypertClient := NewHypertClient(t, config.hypert())

	client, err := language.NewRESTClient(context.Background(), option.WithHTTPClient(hypertClient))
	if err != nil {
		t.Fatalf("failed to create language client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return gemini.NewLemmatizer(client, lang)
}
