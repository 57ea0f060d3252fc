package lexical

import (
	"context"
	"fmt"
	"math"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/table"
)

// Statistic selects one lexical-richness value.
type Statistic string

const (
	Words  Statistic = "Words"
	Terms  Statistic = "Terms"
	TTR    Statistic = "TTR"
	RTTR   Statistic = "RTTR"
	CTTR   Statistic = "CTTR"
	MTLD   Statistic = "MTLD"
	Herdan Statistic = "Herdan"
)

// Statistics lists every statistic in registry order.
var Statistics = []Statistic{Words, Terms, TTR, RTTR, CTTR, MTLD, Herdan}

// MetricPrefix is prepended to a statistic to form its metric name.
const MetricPrefix = "LexicalRichness"

// Options configures a lexical-richness metric
type Options struct {
	// Field is the column to analyze (default "translations")
	Field string
	// Threshold is the MTLD threshold (default 0.72)
	Threshold float64
	// Analyzer shares the memoized analysis; nil creates a private one
	Analyzer *Analyzer
}

// Metric computes one Statistic per row of Field.
type Metric struct {
	stat Statistic
	opts Options
}

var (
	_ api.Metric = (*Metric)(nil)
	_ api.Scorer = (*Metric)(nil)
)

// New returns the metric for stat.
func New(stat Statistic, opts Options) (*Metric, error) {
	if !validStatistic(stat) {
		return nil, fmt.Errorf("unknown lexical statistic %q", stat)
	}
	if opts.Field == "" {
		opts.Field = table.ColumnTranslations
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		return nil, fmt.Errorf("MTLD threshold must be in (0,1), got %v", opts.Threshold)
	}
	if opts.Analyzer == nil {
		opts.Analyzer = NewAnalyzer()
	}
	return &Metric{stat: stat, opts: opts}, nil
}

func validStatistic(stat Statistic) bool {
	for _, s := range Statistics {
		if s == stat {
			return true
		}
	}
	return false
}

func (m *Metric) Name() string { return MetricPrefix + string(m.stat) }

// Field reports the analyzed column.
func (m *Metric) Field() string { return m.opts.Field }

func (m *Metric) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	texts, err := frame.Column(m.opts.Field)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(texts))
	for i, text := range texts {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = m.value(m.opts.Analyzer.Analyze(text))
	}
	return out, nil
}

// Score analyzes the input field that corresponds to the configured column.
func (m *Metric) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	text, ok := inputField(in, m.opts.Field)
	if !ok {
		return api.Score{
			Name:  m.Name(),
			Score: math.NaN(),
			Error: &table.MissingColumnError{Column: m.opts.Field, Available: table.RequiredColumns},
		}
	}
	a := m.opts.Analyzer.Analyze(text)
	return api.Score{
		Name:  m.Name(),
		Score: m.value(a),
		Metadata: map[string]any{
			"words": a.Words,
			"terms": a.Terms,
		},
	}
}

func inputField(in api.ScoreInputs, field string) (string, bool) {
	switch field {
	case table.ColumnSources:
		return in.Input, true
	case table.ColumnTranslations:
		return in.Output, true
	case table.ColumnTargets:
		return in.Expected, true
	}
	return "", false
}

func (m *Metric) value(a *Analysis) float64 {
	switch m.stat {
	case Words:
		return float64(a.Words)
	case Terms:
		return float64(a.Terms)
	case TTR:
		return a.TTR()
	case RTTR:
		return a.RTTR()
	case CTTR:
		return a.CTTR()
	case MTLD:
		return a.MTLD(m.opts.Threshold)
	case Herdan:
		return a.Herdan()
	}
	return math.NaN()
}
