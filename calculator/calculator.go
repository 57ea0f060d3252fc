// Package calculator computes registered metrics over a dataset of
// translations. It validates requests up front, instantiates each backend
// once per Calculator and isolates failing metrics from the rest.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/internal/logger"
	"github.com/datar-psa/mtdetect/lexical"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/table"
)

// DefaultMinValidFraction is the share of finite rows a metric with row
// failures needs to keep its column.
const DefaultMinValidFraction = 0.5

// ModelSpecific holds per-metric configuration keyed by metric name.
type ModelSpecific map[string]api.MetricConfig

// Calculator scores one dataset with any subset of the registry.
// It is not safe for concurrent use.
type Calculator struct {
	frame            *table.Frame
	config           ModelSpecific
	registry         *Registry
	env              *Env
	metrics          *Metrics
	log              *logger.Logger
	minValidFraction float64
	models           map[string]api.Metric
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithRegistry replaces DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(c *Calculator) { c.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Calculator) { c.log = l }
}

// WithMinValidFraction sets the share of finite rows below which a metric
// with row failures is omitted.
func WithMinValidFraction(f float64) Option {
	return func(c *Calculator) { c.minValidFraction = f }
}

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Calculator) { c.metrics = m }
}

// WithGenaiClient enables gemini: embedding models and judge_model regressors.
func WithGenaiClient(client *genai.Client) Option {
	return func(c *Calculator) { c.env.Genai = client }
}

// WithStemmer sets the stemmer METEOR uses with stemmer: lemmatizer.
func WithStemmer(s api.Stemmer) Option {
	return func(c *Calculator) { c.env.Stemmer = s }
}

// WithSynonyms enables the METEOR synonym stage.
func WithSynonyms(p api.SynonymProvider) Option {
	return func(c *Calculator) { c.env.Synonyms = p }
}

// WithHTTPClient sets the client used by HTTP scoring services.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Calculator) { c.env.HTTPClient = client }
}

// New creates a Calculator over frame. The frame must have the sources,
// translations and targets columns.
func New(frame *table.Frame, config ModelSpecific, opts ...Option) (*Calculator, error) {
	if frame == nil {
		return nil, fmt.Errorf("frame is required")
	}
	if err := frame.Require(table.ColumnSources, table.ColumnTranslations, table.ColumnTargets); err != nil {
		return nil, err
	}
	c := &Calculator{
		frame:            frame,
		config:           config,
		env:              &Env{Analyzer: lexical.NewAnalyzer()},
		minValidFraction: DefaultMinValidFraction,
		models:           make(map[string]api.Metric),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.minValidFraction < 0 || c.minValidFraction > 1 {
		return nil, fmt.Errorf("min valid fraction must be in [0,1], got %v", c.minValidFraction)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.log == nil {
		c.log = logger.Log
	}
	c.env.Log = c.log
	return c, nil
}

// NewFromPath loads a CSV, TSV or Arrow file and creates a Calculator over it.
func NewFromPath(path string, config ModelSpecific, opts ...Option) (*Calculator, error) {
	frame, err := table.Load(path)
	if err != nil {
		return nil, err
	}
	return New(frame, config, opts...)
}

// Frame returns the dataset.
func (c *Calculator) Frame() *table.Frame { return c.frame }

// Available returns every metric name the Calculator can compute.
func (c *Calculator) Available() []string { return c.registry.Names() }

// Compute scores the dataset with the named metrics. Unknown names, invalid
// configuration and configured columns the frame lacks fail the whole call
// before anything runs. A metric
// that cannot load or fails to compute is left out of the table and
// reported in its Omitted map.
func (c *Calculator) Compute(ctx context.Context, names []string) (*table.ScoreTable, error) {
	names = dedupe(names)

	var unknown []string
	for _, name := range names {
		if _, ok := c.registry.Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, &api.ConfigurationError{
			Metrics: unknown,
			Reason:  "unknown metric; available: " + strings.Join(c.registry.Names(), ", "),
		}
	}

	var errs []error
	for _, name := range names {
		if err := c.registry.validate(name, c.config[name]); err != nil {
			errs = append(errs, err)
			continue
		}
		if cols := c.registry.columns(name, c.config[name]); len(cols) > 0 {
			if err := c.frame.Require(cols...); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := table.NewScoreTable(c.frame)
	for _, name := range names {
		if err := c.run(ctx, out, name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// run computes one metric into out. Only cancellation is returned; every
// other failure omits the metric.
func (c *Calculator) run(ctx context.Context, out *table.ScoreTable, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := c.log.With("metric", name)

	m, err := c.model(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := reasonLoad
		if errors.Is(err, api.ErrMetricUnavailable) {
			reason = reasonUnavailable
		}
		c.omit(out, name, reason, err)
		return nil
	}

	log.Debug("computing metric", "rows", c.frame.Len())
	start := time.Now()
	scores, err := m.Compute(ctx, c.frame)
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var rowErrs *metric.RowErrors
	switch {
	case err == nil:
	case errors.As(err, &rowErrs) && len(scores) == c.frame.Len():
		if frac := table.FiniteFraction(scores); frac < c.minValidFraction {
			c.omit(out, name, reasonComputation, &api.ComputationError{Metric: name, Err: err})
			return nil
		}
		log.Warn("some rows failed", "failed", len(rowErrs.Errors), "rows", rowErrs.Rows, "error", err)
	default:
		c.omit(out, name, reasonComputation, &api.ComputationError{Metric: name, Err: err})
		return nil
	}

	if err := out.Add(name, scores); err != nil {
		c.omit(out, name, reasonComputation, &api.ComputationError{Metric: name, Err: err})
		return nil
	}
	c.metrics.observe(name, elapsed, len(scores))
	log.Info("metric computed", "mean", table.Mean(scores), "duration", elapsed)
	return nil
}

// model returns the cached backend for name, instantiating it on first use.
func (c *Calculator) model(ctx context.Context, name string) (api.Metric, error) {
	if m, ok := c.models[name]; ok {
		return m, nil
	}
	f, _ := c.registry.Lookup(name)
	m, err := f.New(ctx, c.env, c.config[name])
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	c.metrics.Loads.WithLabelValues(name).Inc()
	c.models[name] = m
	return m, nil
}

func (c *Calculator) omit(out *table.ScoreTable, name, reason string, err error) {
	c.log.Warn("metric omitted", "metric", name, "reason", reason, "error", err)
	c.metrics.Omitted.WithLabelValues(name, reason).Inc()
	out.Omit(name, err)
}

// Close releases every cached backend that holds resources.
func (c *Calculator) Close() error {
	var errs []error
	for name, m := range c.models {
		if closer, ok := m.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
		delete(c.models, name)
	}
	return errors.Join(errs...)
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
