package calculator

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/internal/logger"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/table"
)

func mockFrame() *table.Frame {
	return table.FromRecords([]table.Record{
		{
			Source:      "Il va à la bibliothèque pour lire des livres.",
			Translation: "Он едет в библиотеку, чтобы читать книги.",
			Target:      "Он ходит в библиотеку, чтобы читать книги.",
		},
		{
			Source:      "It is no use crying over spilt milk.",
			Translation: "Нет смысла плакать над пролитым молоком.",
			Target:      "Слезами горю не поможешь.",
		},
	})
}

func newCalculator(t *testing.T, frame *table.Frame, config ModelSpecific, opts ...Option) *Calculator {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	c, err := New(frame, config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCompute_MockMeans(t *testing.T) {
	c := newCalculator(t, mockFrame(), nil)

	st, err := c.Compute(context.Background(), []string{"BLEU", "METEOR", "TER"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sources", "translations", "targets", "BLEU", "METEOR", "TER"}, st.Columns())
	assert.Empty(t, st.Omitted())

	means := st.Means()
	assert.InDelta(t, 40.815, means["BLEU"], 0.01)
	assert.InDelta(t, 0.489, means["METEOR"], 0.01)
	assert.InDelta(t, 82.143, means["TER"], 0.01)
}

func TestCompute_Dedupe(t *testing.T) {
	c := newCalculator(t, mockFrame(), nil)

	st, err := c.Compute(context.Background(), []string{"TER", "BLEU", "TER"})
	require.NoError(t, err)
	assert.Equal(t, []string{"TER", "BLEU"}, st.Metrics())
}

func TestCompute_UnknownMetric(t *testing.T) {
	c := newCalculator(t, mockFrame(), nil)

	st, err := c.Compute(context.Background(), []string{"BLEU", "ROUGE", "bleu"})
	require.Error(t, err)
	assert.Nil(t, st)
	assert.ErrorIs(t, err, api.ErrConfiguration)

	var cfgErr *api.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"ROUGE", "bleu"}, cfgErr.Metrics)
	assert.Empty(t, c.models, "no backend may be instantiated")
}

func TestCompute_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		metrics []string
		config  ModelSpecific
		wantKey string
	}{
		{
			name:    "BERTScore without model_path",
			metrics: []string{"BLEU", "BERTScore"},
			wantKey: "model_path",
		},
		{
			name:    "bad BLEU level",
			metrics: []string{"BLEU"},
			config:  ModelSpecific{"BLEU": {"level": "paragraph"}},
			wantKey: "level",
		},
		{
			name:    "unknown key",
			metrics: []string{"TER"},
			config:  ModelSpecific{"TER": {"normalised": true}},
			wantKey: "normalised",
		},
		{
			name:    "wrong type",
			metrics: []string{"BLEURT"},
			config:  ModelSpecific{"BLEURT": {"batch_size": "many"}},
			wantKey: "batch_size",
		},
		{
			name:    "METEOR unknown language",
			metrics: []string{"METEOR"},
			config:  ModelSpecific{"METEOR": {"language": "klingon"}},
			wantKey: "language",
		},
		{
			name:    "MTLD threshold out of range",
			metrics: []string{"LexicalRichnessMTLD"},
			config:  ModelSpecific{"LexicalRichnessMTLD": {"threshold": 1.5}},
			wantKey: "threshold",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCalculator(t, mockFrame(), tt.config)

			st, err := c.Compute(context.Background(), tt.metrics)
			require.Error(t, err)
			assert.Nil(t, st)

			var cfgErr *api.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
			assert.Empty(t, c.models)
		})
	}
}

func TestCompute_UnavailableOmitted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := newCalculator(t, mockFrame(), ModelSpecific{
		"BERTScore": {"model_path": filepath.Join(t.TempDir(), "missing.vec")},
		"Comet":     {"model_path": "/models/wmt22-comet-da"},
	}, WithMetrics(m))

	st, err := c.Compute(context.Background(), []string{"BLEURT", "BLEU", "BERTScore", "Comet"})
	require.NoError(t, err)

	assert.Equal(t, []string{"BLEU"}, st.Metrics())
	omitted := st.Omitted()
	require.Len(t, omitted, 3)
	for _, name := range []string{"BLEURT", "BERTScore", "Comet"} {
		assert.ErrorIs(t, omitted[name], api.ErrMetricUnavailable, name)
	}
	assert.Equal(t, []string{"BERTScore", "BLEURT", "Comet"}, st.Summary().OmittedNames())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Omitted.WithLabelValues("BLEURT", reasonUnavailable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues("BLEU")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rows.WithLabelValues("BLEU")))

	_, err = st.Mean("BLEURT")
	assert.ErrorIs(t, err, api.ErrMetricUnavailable)
}

func TestCompute_BERTScoreWordVectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.vec")
	require.NoError(t, os.WriteFile(path, []byte("3 2\nthe 1 0\ncat 0 1\ndog 0.6 0.8\n"), 0o644))

	frame := table.FromRecords([]table.Record{
		{Source: "le chat", Translation: "the cat", Target: "the cat"},
		{Source: "le chien", Translation: "the dog", Target: "the cat"},
	})
	c := newCalculator(t, frame, ModelSpecific{"BERTScore": {"model_path": path}})

	st, err := c.Compute(context.Background(), []string{"BERTScore"})
	require.NoError(t, err)
	scores, ok := st.Scores("BERTScore")
	require.True(t, ok)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	// "dog" matches "cat" with cosine 0.8 in both directions.
	assert.InDelta(t, 0.9, scores[1], 1e-9)

	require.NoError(t, c.Close())
	assert.Empty(t, c.models)
}

func TestCompute_LexicalSharesAnalyzer(t *testing.T) {
	c := newCalculator(t, mockFrame(), nil)

	names := []string{
		"LexicalRichnessWords", "LexicalRichnessTerms", "LexicalRichnessTTR", "LexicalRichnessRTTR",
		"LexicalRichnessCTTR", "LexicalRichnessMTLD", "LexicalRichnessHerdan",
	}
	st, err := c.Compute(context.Background(), names)
	require.NoError(t, err)
	assert.Equal(t, names, st.Metrics())

	words, _ := st.Scores("LexicalRichnessWords")
	assert.Equal(t, []float64{7, 6}, words)
	assert.Equal(t, 2, c.env.Analyzer.Len(), "one analysis per distinct text")
}

// fakeMetric returns fixed scores and counts closes.
type fakeMetric struct {
	name   string
	scores []float64
	err    error
	closed int
}

func (f *fakeMetric) Name() string { return f.name }

func (f *fakeMetric) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	return f.scores, f.err
}

func (f *fakeMetric) Close() error {
	f.closed++
	return nil
}

func countingRegistry(loads map[string]int, metrics map[string]*fakeMetric) *Registry {
	r := NewRegistry()
	for name, m := range metrics {
		r.MustRegister(name, Factory{
			New: func(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) {
				loads[name]++
				if m == nil {
					return nil, errors.New("weights are corrupt")
				}
				return m, nil
			},
		})
	}
	return r
}

func TestCompute_CachesBackends(t *testing.T) {
	loads := map[string]int{}
	fake := &fakeMetric{name: "Fake", scores: []float64{1, 2}}
	reg := countingRegistry(loads, map[string]*fakeMetric{"Fake": fake, "Broken": nil})
	c, err := New(mockFrame(), nil, WithRegistry(reg), WithLogger(logger.Nop()))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		st, err := c.Compute(context.Background(), []string{"Fake", "Broken"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Fake"}, st.Metrics())
		assert.Contains(t, st.Omitted()["Broken"].Error(), "weights are corrupt")
	}
	assert.Equal(t, 1, loads["Fake"])
	assert.Equal(t, 3, loads["Broken"], "failed loads are retried")

	require.NoError(t, c.Close())
	assert.Equal(t, 1, fake.closed)
}

func TestCompute_RowFailures(t *testing.T) {
	rowErrs := &metric.RowErrors{Rows: 2, Errors: map[int]error{1: errors.New("timeout")}}

	tests := []struct {
		name        string
		minValid    float64
		wantOmitted bool
	}{
		{name: "half the rows survive", minValid: DefaultMinValidFraction},
		{name: "stricter threshold", minValid: 0.75, wantOmitted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeMetric{name: "Partial", scores: []float64{0.7, math.NaN()}, err: rowErrs}
			reg := countingRegistry(map[string]int{}, map[string]*fakeMetric{"Partial": fake})
			c := newCalculator(t, mockFrame(), nil, WithRegistry(reg), WithMinValidFraction(tt.minValid))

			st, err := c.Compute(context.Background(), []string{"Partial"})
			require.NoError(t, err)
			if tt.wantOmitted {
				assert.Empty(t, st.Metrics())
				assert.ErrorIs(t, st.Omitted()["Partial"], api.ErrComputation)
				return
			}
			mean, err := st.Mean("Partial")
			require.NoError(t, err)
			assert.InDelta(t, 0.7, mean, 1e-12)
		})
	}
}

func TestCompute_ComputationErrorIsolated(t *testing.T) {
	reg := countingRegistry(map[string]int{}, map[string]*fakeMetric{
		"Good":  {name: "Good", scores: []float64{1, 1}},
		"Bad":   {name: "Bad", err: errors.New("out of memory")},
		"Short": {name: "Short", scores: []float64{1}},
	})
	c := newCalculator(t, mockFrame(), nil, WithRegistry(reg))

	st, err := c.Compute(context.Background(), []string{"Bad", "Good", "Short"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Good"}, st.Metrics())
	assert.ErrorIs(t, st.Omitted()["Bad"], api.ErrComputation)
	assert.ErrorIs(t, st.Omitted()["Short"], api.ErrComputation)
}

func TestCompute_Cancelled(t *testing.T) {
	c := newCalculator(t, mockFrame(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Compute(ctx, []string{"BLEU"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_MissingColumn(t *testing.T) {
	frame, err := table.FromColumns([]string{"sources", "translations"}, map[string][]string{
		"sources":      {"a"},
		"translations": {"b"},
	})
	require.NoError(t, err)

	_, err = New(frame, nil)
	assert.ErrorIs(t, err, api.ErrMissingColumn)

	var colErr *api.MissingColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "targets", colErr.Column)

	_, err = New(mockFrame(), nil, WithMinValidFraction(2))
	assert.Error(t, err)
}

func TestCompute_ConfiguredColumnMissing(t *testing.T) {
	c := newCalculator(t, mockFrame(), ModelSpecific{
		"LexicalRichnessTTR": {"field": "paraphrases"},
	})

	st, err := c.Compute(context.Background(), []string{"BLEU", "LexicalRichnessTTR"})
	require.Error(t, err)
	assert.Nil(t, st)
	assert.ErrorIs(t, err, api.ErrMissingColumn)
	var colErr *api.MissingColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "paraphrases", colErr.Column)
	assert.Empty(t, c.models, "nothing loaded before validation passed")

	st, err = c.Compute(context.Background(), []string{"LexicalRichnessTTR"})
	require.Error(t, err)
	assert.Nil(t, st)

	ok := newCalculator(t, mockFrame(), ModelSpecific{
		"LexicalRichnessTerms": {"field": "targets"},
	})
	st, err = ok.Compute(context.Background(), []string{"LexicalRichnessTerms"})
	require.NoError(t, err)
	assert.Equal(t, []string{"LexicalRichnessTerms"}, st.Metrics())
}

func TestNewFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock.csv")
	require.NoError(t, table.Save(path, mockFrame()))

	c, err := NewFromPath(path, nil, WithLogger(logger.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Frame().Len())
	assert.Len(t, c.Available(), 13)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	newFn := func(ctx context.Context, env *Env, cfg api.MetricConfig) (api.Metric, error) { return nil, nil }

	require.NoError(t, r.Register("X", Factory{New: newFn}))
	assert.Error(t, r.Register("X", Factory{New: newFn}))
	assert.Error(t, r.Register("", Factory{New: newFn}))
	assert.Error(t, r.Register("Y", Factory{}))
	assert.Equal(t, []string{"X"}, r.Names())
}

func TestCompute_RowCountProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "rows")
		text := rapid.StringMatching(`[a-z]{0,6}( [a-z]{1,6}){0,6}`)
		reference := rapid.StringMatching(`[a-z]{1,6}( [a-z]{1,6}){0,6}`)
		records := make([]table.Record, n)
		for i := range records {
			records[i] = table.Record{
				Source:      text.Draw(rt, "source"),
				Translation: text.Draw(rt, "translation"),
				Target:      reference.Draw(rt, "target"),
			}
		}

		c, err := New(table.FromRecords(records), nil, WithLogger(logger.Nop()))
		if err != nil {
			rt.Fatalf("New: %v", err)
		}
		st, err := c.Compute(context.Background(), []string{"BLEU", "TER", "LexicalRichnessTTR"})
		if err != nil {
			rt.Fatalf("Compute: %v", err)
		}
		if st.Len() != n {
			rt.Fatalf("table has %d rows, want %d", st.Len(), n)
		}
		for _, name := range st.Metrics() {
			scores, _ := st.Scores(name)
			if len(scores) != n {
				rt.Fatalf("%s has %d scores, want %d", name, len(scores), n)
			}
		}
	})
}
