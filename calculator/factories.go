package calculator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/gemini"
	"github.com/datar-psa/mtdetect/internal/logger"
	"github.com/datar-psa/mtdetect/lexical"
	"github.com/datar-psa/mtdetect/llmjudge"
	"github.com/datar-psa/mtdetect/neural"
	"github.com/datar-psa/mtdetect/statistical"
)

// Env carries the shared resources factories build backends from. It is
// owned by one Calculator.
type Env struct {
	Log *logger.Logger
	// Analyzer is shared by all lexical-richness metrics
	Analyzer *lexical.Analyzer
	// Stemmer backs METEOR with stemmer: lemmatizer
	Stemmer api.Stemmer
	// Synonyms enables the METEOR synonym stage
	Synonyms api.SynonymProvider
	// Genai backs gemini: embedding models and LLM judges
	Genai      *genai.Client
	HTTPClient *http.Client
}

// GeminiModelPrefix selects a Gemini embedding model in BERTScore model_path.
const GeminiModelPrefix = "gemini:"

// DefaultRegistry returns a registry with every built-in metric.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("BLEU", Factory{
		Keys: []string{"level", "tokenize", "smooth", "smooth_value", "lowercase", "max_order"},
		Validate: func(cfg api.MetricConfig) error {
			_, err := bleuOptions(cfg)
			return err
		},
		New: func(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) {
			opts, err := bleuOptions(cfg)
			if err != nil {
				return nil, err
			}
			return statistical.NewBLEU(opts)
		},
	})
	r.MustRegister("METEOR", Factory{
		Keys: []string{"alpha", "beta", "gamma", "language", "stemmer"},
		Validate: func(cfg api.MetricConfig) error {
			_, _, err := meteorOptions(cfg)
			return err
		},
		New: newMETEOR,
	})
	r.MustRegister("TER", Factory{
		Keys: []string{"case_sensitive", "normalized", "no_punct"},
		Validate: func(cfg api.MetricConfig) error {
			_, err := terOptions(cfg)
			return err
		},
		New: func(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) {
			opts, err := terOptions(cfg)
			if err != nil {
				return nil, err
			}
			return statistical.NewTER(opts), nil
		},
	})
	r.MustRegister("BERTScore", Factory{
		Keys: []string{"model_path", "measure", "concurrency"},
		Validate: func(cfg api.MetricConfig) error {
			_, _, err := bertScoreOptions(cfg)
			return err
		},
		New: newBERTScore,
	})
	for _, name := range []string{"BLEURT", "Comet"} {
		r.MustRegister(name, Factory{
			Keys: []string{"endpoint", "model_path", "model", "judge_model", "batch_size", "timeout"},
			Validate: func(cfg api.MetricConfig) error {
				_, err := regressorConfig(name, cfg)
				return err
			},
			New: func(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) {
				return newRegression(name, env, cfg)
			},
		})
	}
	for _, stat := range lexical.Statistics {
		r.MustRegister(lexical.MetricPrefix+string(stat), Factory{
			Keys: []string{"field", "threshold"},
			Validate: func(cfg api.MetricConfig) error {
				_, err := lexicalOptions(stat, cfg)
				return err
			},
			Columns: func(cfg api.MetricConfig) []string {
				opts, err := lexicalOptions(stat, cfg)
				if err != nil || opts.Field == "" {
					return nil
				}
				return []string{opts.Field}
			},
			New: func(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) {
				opts, err := lexicalOptions(stat, cfg)
				if err != nil {
					return nil, err
				}
				opts.Analyzer = env.Analyzer
				return lexical.New(stat, opts)
			},
		})
	}
	return r
}

// configReader reads typed keys and keeps the first error.
type configReader struct {
	metric string
	cfg    api.MetricConfig
	err    error
}

func (r *configReader) fail(key string, err error) {
	if r.err == nil {
		r.err = api.NewConfigurationError(r.metric, key, err.Error())
	}
}

func (r *configReader) str(key, def string) string {
	v, err := r.cfg.String(key, def)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func (r *configReader) float(key string, def float64) float64 {
	v, err := r.cfg.Float(key, def)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func (r *configReader) int(key string, def int) int {
	v, err := r.cfg.Int(key, def)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func (r *configReader) bool(key string, def bool) bool {
	v, err := r.cfg.Bool(key, def)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func bleuOptions(cfg api.MetricConfig) (statistical.BLEUOptions, error) {
	r := &configReader{metric: "BLEU", cfg: cfg}
	opts := statistical.BLEUOptions{
		Tokenize:    r.str("tokenize", statistical.Tokenize13a),
		Smooth:      r.str("smooth", statistical.SmoothExp),
		SmoothValue: r.float("smooth_value", 0),
		Lowercase:   r.bool("lowercase", false),
		MaxOrder:    r.int("max_order", 4),
	}
	switch level := r.str("level", "sentence"); level {
	case "sentence":
	case "corpus":
		opts.CorpusLevel = true
	default:
		r.fail("level", fmt.Errorf("must be sentence or corpus, got %q", level))
	}
	if r.err != nil {
		return opts, r.err
	}
	if _, err := statistical.NewBLEU(opts); err != nil {
		return opts, api.NewConfigurationError("BLEU", "", err.Error())
	}
	return opts, nil
}

const (
	stemmerSnowball   = "snowball"
	stemmerLemmatizer = "lemmatizer"
)

func meteorOptions(cfg api.MetricConfig) (statistical.METEOROptions, string, error) {
	r := &configReader{metric: "METEOR", cfg: cfg}
	opts := statistical.METEOROptions{
		Alpha: r.float("alpha", 0.9),
		Beta:  r.float("beta", 3),
		Gamma: r.float("gamma", 0.5),
	}
	language := r.str("language", "english")
	stemmer := r.str("stemmer", stemmerSnowball)
	if r.err != nil {
		return opts, stemmer, r.err
	}
	switch stemmer {
	case stemmerSnowball:
		s, err := statistical.NewSnowballStemmer(language)
		if err != nil {
			return opts, stemmer, api.NewConfigurationError("METEOR", "language", err.Error())
		}
		opts.Stemmer = s
	case stemmerLemmatizer:
	default:
		return opts, stemmer, api.NewConfigurationError("METEOR", "stemmer",
			fmt.Sprintf("must be %s or %s, got %q", stemmerSnowball, stemmerLemmatizer, stemmer))
	}
	if _, err := statistical.NewMETEOR(opts); err != nil {
		return opts, stemmer, api.NewConfigurationError("METEOR", "", err.Error())
	}
	return opts, stemmer, nil
}

func newMETEOR(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) {
	opts, stemmer, err := meteorOptions(cfg)
	if err != nil {
		return nil, err
	}
	if stemmer == stemmerLemmatizer {
		if env.Stemmer == nil {
			return nil, &api.MetricUnavailableError{Metric: "METEOR", Err: errors.New("no lemmatizer configured")}
		}
		opts.Stemmer = env.Stemmer
	}
	opts.Synonyms = env.Synonyms
	return statistical.NewMETEOR(opts)
}

func terOptions(cfg api.MetricConfig) (statistical.TEROptions, error) {
	r := &configReader{metric: "TER", cfg: cfg}
	opts := statistical.TEROptions{
		CaseSensitive: r.bool("case_sensitive", false),
		Normalize:     r.bool("normalized", false),
		NoPunct:       r.bool("no_punct", false),
	}
	return opts, r.err
}

func bertScoreOptions(cfg api.MetricConfig) (neural.BERTScoreOptions, string, error) {
	r := &configReader{metric: "BERTScore", cfg: cfg}
	path := r.str("model_path", "")
	opts := neural.BERTScoreOptions{
		Measure:     r.str("measure", neural.MeasureF1),
		Concurrency: r.int("concurrency", 1),
	}
	if r.err != nil {
		return opts, path, r.err
	}
	if path == "" {
		return opts, path, api.NewConfigurationError("BERTScore", "model_path", "a word-vector file or gemini:<model> is required")
	}
	if path == GeminiModelPrefix {
		return opts, path, api.NewConfigurationError("BERTScore", "model_path", "gemini: needs a model name")
	}
	switch opts.Measure {
	case neural.MeasureF1, neural.MeasurePrecision, neural.MeasureRecall:
	default:
		return opts, path, api.NewConfigurationError("BERTScore", "measure", fmt.Sprintf("unknown measure %q", opts.Measure))
	}
	if opts.Concurrency < 1 {
		return opts, path, api.NewConfigurationError("BERTScore", "concurrency", "must be at least 1")
	}
	return opts, path, nil
}

// closingMetric releases the model behind a metric.
type closingMetric struct {
	api.Metric
	io.Closer
}

func newBERTScore(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) {
	opts, path, err := bertScoreOptions(cfg)
	if err != nil {
		return nil, err
	}

	if model, ok := strings.CutPrefix(path, GeminiModelPrefix); ok {
		if env.Genai == nil {
			return nil, &api.MetricUnavailableError{Metric: "BERTScore", Err: errors.New("no Gemini client configured")}
		}
		opts.Embedder = gemini.NewEmbedder(env.Genai, model)
		return neural.NewBERTScore(opts)
	}

	vectors, err := neural.LoadVectors(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &api.MetricUnavailableError{Metric: "BERTScore", Err: err}
		}
		return nil, err
	}
	env.Log.Info("loaded word vectors", "path", path, "words", vectors.Len(), "dim", vectors.Dim())
	opts.Embedder = vectors
	m, err := neural.NewBERTScore(opts)
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}
	return closingMetric{Metric: m, Closer: vectors}, nil
}

type regressorSettings struct {
	endpoint  string
	modelPath string
	model     string
	judge     string
	batchSize int
	timeout   time.Duration
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func regressorConfig(name string, cfg api.MetricConfig) (regressorSettings, error) {
	r := &configReader{metric: name, cfg: cfg}
	s := regressorSettings{
		endpoint:  r.str("endpoint", ""),
		modelPath: r.str("model_path", ""),
		model:     r.str("model", ""),
		judge:     r.str("judge_model", ""),
		batchSize: r.int("batch_size", neural.DefaultBatchSize),
	}
	timeout := r.float("timeout", 0)
	if r.err != nil {
		return s, r.err
	}
	if s.endpoint != "" && !isHTTP(s.endpoint) {
		return s, api.NewConfigurationError(name, "endpoint", fmt.Sprintf("%q is not an http(s) URL", s.endpoint))
	}
	if s.batchSize < 1 {
		return s, api.NewConfigurationError(name, "batch_size", "must be at least 1")
	}
	if timeout < 0 {
		return s, api.NewConfigurationError(name, "timeout", "must not be negative")
	}
	s.timeout = time.Duration(timeout * float64(time.Second))
	return s, nil
}

func newRegression(name string, env *Env, cfg api.MetricConfig) (api.Metric, error) {
	s, err := regressorConfig(name, cfg)
	if err != nil {
		return nil, err
	}

	var regressor api.Regressor
	endpoint := s.endpoint
	if endpoint == "" && isHTTP(s.modelPath) {
		endpoint = s.modelPath
	}
	switch {
	case endpoint != "":
		opts := []neural.HTTPOption{neural.WithModel(s.model), neural.WithLogger(env.Log)}
		if env.HTTPClient != nil {
			opts = append(opts, neural.WithHTTPClient(env.HTTPClient))
		} else if s.timeout > 0 {
			opts = append(opts, neural.WithTimeout(s.timeout))
		}
		regressor, err = neural.NewHTTPRegressor(endpoint, opts...)
		if err != nil {
			return nil, err
		}
	case s.judge != "":
		if env.Genai == nil {
			return nil, &api.MetricUnavailableError{Metric: name, Err: errors.New("judge_model set but no Gemini client configured")}
		}
		regressor = llmjudge.Quality(gemini.NewGenerator(env.Genai, s.judge), llmjudge.QualityOptions{
			Name:      name,
			UseSource: name == "Comet",
		})
	case s.modelPath != "":
		return nil, &api.MetricUnavailableError{Metric: name, Err: fmt.Errorf("checkpoint %s cannot run in process; serve it and set endpoint", s.modelPath)}
	default:
		return nil, &api.MetricUnavailableError{Metric: name, Err: errors.New("no endpoint or judge_model configured")}
	}

	opts := neural.RegressorOptions{Regressor: regressor, BatchSize: s.batchSize}
	if name == "Comet" {
		return neural.NewComet(opts)
	}
	return neural.NewBLEURT(opts)
}

func lexicalOptions(stat lexical.Statistic, cfg api.MetricConfig) (lexical.Options, error) {
	name := lexical.MetricPrefix + string(stat)
	r := &configReader{metric: name, cfg: cfg}
	opts := lexical.Options{
		Field:     r.str("field", ""),
		Threshold: r.float("threshold", lexical.DefaultThreshold),
	}
	if r.err != nil {
		return opts, r.err
	}
	if _, err := lexical.New(stat, opts); err != nil {
		return opts, api.NewConfigurationError(name, "threshold", err.Error())
	}
	return opts, nil
}
