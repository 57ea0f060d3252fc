// Package mtdetect exposes the machine-translation metrics and the metric
// calculator behind small constructors. The subpackages can also be used
// directly.
package mtdetect

import (
	"google.golang.org/genai"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/calculator"
	"github.com/datar-psa/mtdetect/gemini"
	"github.com/datar-psa/mtdetect/lexical"
	"github.com/datar-psa/mtdetect/llmjudge"
	"github.com/datar-psa/mtdetect/neural"
	"github.com/datar-psa/mtdetect/statistical"
	"github.com/datar-psa/mtdetect/table"
)

type Score = api.Score
type ScoreInputs = api.ScoreInputs
type Scorer = api.Scorer
type Metric = api.Metric
type MetricConfig = api.MetricConfig

type LLMGenerator = api.LLMGenerator
type Embedder = api.Embedder
type TokenEmbedder = api.TokenEmbedder
type Translator = api.Translator
type Regressor = api.Regressor
type Stemmer = api.Stemmer
type SynonymProvider = api.SynonymProvider

type Frame = table.Frame
type ScoreTable = table.ScoreTable

// Statistical exposes the n-gram and edit-distance metrics.
type Statistical struct {
	stemmer  api.Stemmer
	synonyms api.SynonymProvider
}

// StatisticalOptions configures Statistical creation
type StatisticalOptions struct {
	stemmer  api.Stemmer
	synonyms api.SynonymProvider
}

// WithStemmer sets the METEOR stem-stage stemmer
func WithStemmer(s api.Stemmer) func(*StatisticalOptions) {
	return func(opts *StatisticalOptions) {
		opts.stemmer = s
	}
}

// WithSynonyms enables the METEOR synonym stage
func WithSynonyms(p api.SynonymProvider) func(*StatisticalOptions) {
	return func(opts *StatisticalOptions) {
		opts.synonyms = p
	}
}

// NewStatistical creates a new Statistical using functional options.
func NewStatistical(opts ...func(*StatisticalOptions)) *Statistical {
	options := &StatisticalOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return &Statistical{stemmer: options.stemmer, synonyms: options.synonyms}
}

type BLEUOptions = statistical.BLEUOptions

// BLEU returns the BLEU metric (0-100).
func (s *Statistical) BLEU(opts BLEUOptions) (*statistical.BLEU, error) {
	return statistical.NewBLEU(opts)
}

type METEOROptions = statistical.METEOROptions

// METEOR returns the METEOR metric. Stemmer and Synonyms left unset in opts
// are taken from the Statistical options.
func (s *Statistical) METEOR(opts METEOROptions) (*statistical.METEOR, error) {
	if opts.Stemmer == nil {
		opts.Stemmer = s.stemmer
	}
	if opts.Synonyms == nil {
		opts.Synonyms = s.synonyms
	}
	return statistical.NewMETEOR(opts)
}

type TEROptions = statistical.TEROptions

// TER returns the translation edit rate metric.
func (s *Statistical) TER(opts TEROptions) *statistical.TER {
	return statistical.NewTER(opts)
}

// Lexical creates lexical-richness metrics that share one analysis cache.
type Lexical struct{ analyzer *lexical.Analyzer }

// NewLexical creates a new Lexical.
func NewLexical() *Lexical {
	return &Lexical{analyzer: lexical.NewAnalyzer()}
}

type LexicalOptions = lexical.Options

// Richness returns the metric for one lexical statistic, e.g. lexical.MTLD.
func (l *Lexical) Richness(stat lexical.Statistic, opts LexicalOptions) (*lexical.Metric, error) {
	if opts.Analyzer == nil {
		opts.Analyzer = l.analyzer
	}
	return lexical.New(stat, opts)
}

// Neural wraps the model backends of the learned metrics.
type Neural struct {
	tokens    api.TokenEmbedder
	regressor api.Regressor
}

// NeuralOptions configures Neural creation
type NeuralOptions struct {
	tokens    api.TokenEmbedder
	regressor api.Regressor
}

// WithTokenEmbedder sets the token embedder behind BERTScore
func WithTokenEmbedder(e api.TokenEmbedder) func(*NeuralOptions) {
	return func(opts *NeuralOptions) {
		opts.tokens = e
	}
}

// WithRegressor sets the model behind BLEURT and Comet
func WithRegressor(r api.Regressor) func(*NeuralOptions) {
	return func(opts *NeuralOptions) {
		opts.regressor = r
	}
}

// NewNeural creates a new Neural using functional options.
func NewNeural(opts ...func(*NeuralOptions)) *Neural {
	options := &NeuralOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return &Neural{tokens: options.tokens, regressor: options.regressor}
}

// GeminiOptions configures Gemini-backed constructors
type GeminiOptions struct {
	genaiClient    *genai.Client
	modelName      string
	embeddingModel string
}

// WithGenaiClient sets the Gemini client
func WithGenaiClient(client *genai.Client) func(*GeminiOptions) {
	return func(opts *GeminiOptions) {
		opts.genaiClient = client
	}
}

// WithModelName sets the generation model used by the judge
func WithModelName(modelName string) func(*GeminiOptions) {
	return func(opts *GeminiOptions) {
		opts.modelName = modelName
	}
}

// WithEmbeddingModel sets the embedding model used by BERTScore
func WithEmbeddingModel(modelName string) func(*GeminiOptions) {
	return func(opts *GeminiOptions) {
		opts.embeddingModel = modelName
	}
}

// NewGeminiNeural creates a Neural whose BERTScore embeds with Gemini and
// whose BLEURT/Comet regressor is the Gemini quality judge.
// Example models: "gemini-2.5-flash", "text-embedding-005".
func NewGeminiNeural(opts ...func(*GeminiOptions)) *Neural {
	options := &GeminiOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var neuralOptions []func(*NeuralOptions)

	// Only add backends whose model name is provided
	if options.genaiClient != nil && options.embeddingModel != "" {
		neuralOptions = append(neuralOptions, WithTokenEmbedder(gemini.NewEmbedder(options.genaiClient, options.embeddingModel)))
	}
	if options.genaiClient != nil && options.modelName != "" {
		judge := llmjudge.Quality(gemini.NewGenerator(options.genaiClient, options.modelName), llmjudge.QualityOptions{UseSource: true})
		neuralOptions = append(neuralOptions, WithRegressor(judge))
	}

	return NewNeural(neuralOptions...)
}

type BERTScoreOptions = neural.BERTScoreOptions

// BERTScore returns the BERTScore metric using the configured embedder
// unless opts sets one.
func (n *Neural) BERTScore(opts BERTScoreOptions) (*neural.BERTScore, error) {
	if opts.Embedder == nil {
		opts.Embedder = n.tokens
	}
	return neural.NewBERTScore(opts)
}

type RegressorOptions = neural.RegressorOptions

// BLEURT returns the BLEURT metric using the configured regressor unless
// opts sets one.
func (n *Neural) BLEURT(opts RegressorOptions) (*neural.Regression, error) {
	if opts.Regressor == nil {
		opts.Regressor = n.regressor
	}
	return neural.NewBLEURT(opts)
}

// Comet returns the Comet metric using the configured regressor unless
// opts sets one.
func (n *Neural) Comet(opts RegressorOptions) (*neural.Regression, error) {
	if opts.Regressor == nil {
		opts.Regressor = n.regressor
	}
	return neural.NewComet(opts)
}

type QualityOptions = llmjudge.QualityOptions

// Quality returns an LLM-as-a-judge translation quality scorer.
func Quality(llm api.LLMGenerator, opts QualityOptions) Scorer {
	return llmjudge.Quality(llm, opts)
}

type Calculator = calculator.Calculator
type ModelSpecific = calculator.ModelSpecific
type CalculatorOption = calculator.Option

// NewCalculator creates a metric calculator over frame. See the calculator
// package for options.
func NewCalculator(frame *table.Frame, config ModelSpecific, opts ...CalculatorOption) (*Calculator, error) {
	return calculator.New(frame, config, opts...)
}

// LoadFrame reads a .csv, .tsv or .arrow table.
func LoadFrame(path string) (*Frame, error) {
	return table.Load(path)
}
