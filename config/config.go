// Package config loads the mtdetect configuration.
//
// Precedence: Default() values, then the YAML file, then MTDETECT_*
// environment variables. Nested fields use the section and field env tags
// joined by underscores, e.g. MTDETECT_GEMINI_API_KEY.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/datar-psa/mtdetect/api"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MTDETECT"

// Config is the complete configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" env:"LOG"`
	Data       DataConfig       `yaml:"data" env:"DATA"`
	Gemini     GeminiConfig     `yaml:"gemini" env:"GEMINI"`
	Calculator CalculatorConfig `yaml:"calculator" env:"CALCULATOR"`
	Generation GenerationConfig `yaml:"generation" env:"GENERATION"`
	Store      StoreConfig      `yaml:"store" env:"STORE"`
	Metrics    MetricsConfig    `yaml:"metrics" env:"METRICS"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format is console or json
	Format string `yaml:"format" env:"FORMAT"`
}

// DataConfig locates corpora and generated artifacts.
type DataConfig struct {
	// Dir holds name.src-trg.tsv corpora and cached datasets
	Dir string `yaml:"dir" env:"DIR"`
	// OutputDir receives generated text files, frames and splits
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
	// Ext is the extension of saved datasets: arrow, csv or tsv
	Ext string `yaml:"ext" env:"EXT"`
}

// GeminiConfig configures the genai client. Either APIKey or Project must
// be set for Gemini-backed components; neither disables them.
type GeminiConfig struct {
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	Project  string `yaml:"project" env:"PROJECT"`
	Location string `yaml:"location" env:"LOCATION"`
	// Model generates translations and judge scores
	Model string `yaml:"model" env:"MODEL"`
	// RequestsPerSecond limits translation calls; 0 is unlimited
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Lemmatizer enables the Cloud Natural Language stemmer for METEOR
	Lemmatizer bool `yaml:"lemmatizer" env:"LEMMATIZER"`
}

// Enabled reports whether a genai client can be built.
func (g GeminiConfig) Enabled() bool {
	return g.APIKey != "" || g.Project != ""
}

type CalculatorConfig struct {
	MinValidFraction float64 `yaml:"min_valid_fraction" env:"MIN_VALID_FRACTION"`
	// Models holds the per-metric configuration, keyed by metric name
	Models map[string]api.MetricConfig `yaml:"models" env:"-"`
}

type GenerationConfig struct {
	BatchSize   int     `yaml:"batch_size" env:"BATCH_SIZE"`
	LoggingFreq int     `yaml:"logging_freq" env:"LOGGING_FREQ"`
	SavingFreq  int     `yaml:"saving_freq" env:"SAVING_FREQ"`
	TestSize    float64 `yaml:"test_size" env:"TEST_SIZE"`
	Seed        uint64  `yaml:"seed" env:"SEED"`
	// Tokenizer is a tiktoken encoding name
	Tokenizer string `yaml:"tokenizer" env:"TOKENIZER"`
	MaxLength int    `yaml:"max_length" env:"MAX_LENGTH"`
}

type StoreConfig struct {
	// Path of the SQLite run store; empty disables run persistence
	Path string `yaml:"path" env:"PATH"`
}

type MetricsConfig struct {
	// TextfilePath receives Prometheus metrics in text format after a run
	TextfilePath string `yaml:"textfile_path" env:"TEXTFILE_PATH"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Data: DataConfig{
			Dir:       "data",
			OutputDir: "data/generated",
			Ext:       "arrow",
		},
		Gemini: GeminiConfig{
			Location: "us-central1",
			Model:    "gemini-2.5-flash",
			Timeout:  2 * time.Minute,
		},
		Calculator: CalculatorConfig{
			MinValidFraction: 0.5,
			Models:           map[string]api.MetricConfig{},
		},
		Generation: GenerationConfig{
			BatchSize:   32,
			LoggingFreq: 250,
			SavingFreq:  50000,
			TestSize:    0.2,
			Seed:        42,
			Tokenizer:   "cl100k_base",
			MaxLength:   512,
		},
	}
}

// Load reads path over Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if cfg.Calculator.Models == nil {
		cfg.Calculator.Models = map[string]api.MetricConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be console or json, got %q", c.Log.Format))
	}
	switch c.Data.Ext {
	case "arrow", "csv", "tsv":
	default:
		errs = append(errs, fmt.Errorf("data.ext: must be arrow, csv or tsv, got %q", c.Data.Ext))
	}
	if c.Gemini.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("gemini.requests_per_second: must not be negative"))
	}
	if f := c.Calculator.MinValidFraction; f < 0 || f > 1 {
		errs = append(errs, fmt.Errorf("calculator.min_valid_fraction: must be in [0, 1], got %v", f))
	}
	g := c.Generation
	if g.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("generation.batch_size: must be positive, got %d", g.BatchSize))
	}
	if g.LoggingFreq < 1 || g.SavingFreq < 1 {
		errs = append(errs, fmt.Errorf("generation: logging_freq and saving_freq must be positive"))
	}
	if g.TestSize <= 0 || g.TestSize >= 1 {
		errs = append(errs, fmt.Errorf("generation.test_size: must be in (0, 1), got %v", g.TestSize))
	}
	if g.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("generation.max_length: must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// applyEnv walks the struct fields of v and sets every field whose
// PREFIX_TAG variable is present.
func applyEnv(v reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, key, lookup); err != nil {
				return err
			}
			continue
		}
		value, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
