package table

import (
	"fmt"
	"math"
	"sort"
)

// AggregateResult maps a metric name to its aggregate value.
type AggregateResult map[string]float64

// ScoreTable is the input frame plus one score column per computed metric.
// Every score column has exactly Frame().Len() values.
type ScoreTable struct {
	frame   *Frame
	metrics []string
	scores  map[string][]float64
	omitted map[string]error
}

// NewScoreTable starts an empty score table over frame.
func NewScoreTable(frame *Frame) *ScoreTable {
	return &ScoreTable{
		frame:   frame,
		scores:  make(map[string][]float64),
		omitted: make(map[string]error),
	}
}

// Add appends a score column.
func (t *ScoreTable) Add(metric string, scores []float64) error {
	if len(scores) != t.frame.Len() {
		return fmt.Errorf("metric %s: %d scores for %d rows", metric, len(scores), t.frame.Len())
	}
	if _, dup := t.scores[metric]; dup {
		return fmt.Errorf("metric %s already present", metric)
	}
	if t.frame.Has(metric) {
		return fmt.Errorf("metric %s collides with an input column", metric)
	}
	t.metrics = append(t.metrics, metric)
	t.scores[metric] = append([]float64(nil), scores...)
	return nil
}

// Omit records a requested metric that could not be computed.
func (t *ScoreTable) Omit(metric string, err error) {
	t.omitted[metric] = err
}

// Frame returns the input frame.
func (t *ScoreTable) Frame() *Frame { return t.frame }

// Len returns the number of rows.
func (t *ScoreTable) Len() int { return t.frame.Len() }

// Metrics returns the computed metric names in column order.
func (t *ScoreTable) Metrics() []string {
	return append([]string(nil), t.metrics...)
}

// Columns returns input columns followed by metric columns.
func (t *ScoreTable) Columns() []string {
	return append(t.frame.Columns(), t.metrics...)
}

// Scores returns a copy of a metric column.
func (t *ScoreTable) Scores(metric string) ([]float64, bool) {
	s, ok := t.scores[metric]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), s...), true
}

// Omitted returns the metrics that were requested but not computed, with the reason.
func (t *ScoreTable) Omitted() map[string]error {
	out := make(map[string]error, len(t.omitted))
	for k, v := range t.omitted {
		out[k] = v
	}
	return out
}

// Mean returns the population mean of a metric column over its finite values.
func (t *ScoreTable) Mean(metric string) (float64, error) {
	s, ok := t.scores[metric]
	if !ok {
		if err, omitted := t.omitted[metric]; omitted {
			return math.NaN(), fmt.Errorf("metric %s was omitted: %w", metric, err)
		}
		return math.NaN(), fmt.Errorf("metric %s not computed", metric)
	}
	return Mean(s), nil
}

// Means aggregates every computed metric.
func (t *ScoreTable) Means() AggregateResult {
	out := make(AggregateResult, len(t.metrics))
	for _, m := range t.metrics {
		out[m] = Mean(t.scores[m])
	}
	return out
}

// Summary describes the outcome of a compute call.
type Summary struct {
	Rows     int
	Computed []string
	Omitted  map[string]string
}

// Summary reports computed and omitted metrics.
func (t *ScoreTable) Summary() Summary {
	s := Summary{
		Rows:     t.Len(),
		Computed: t.Metrics(),
		Omitted:  make(map[string]string, len(t.omitted)),
	}
	for k, v := range t.omitted {
		s.Omitted[k] = v.Error()
	}
	return s
}

// OmittedNames returns the omitted metric names sorted.
func (s Summary) OmittedNames() []string {
	names := make([]string, 0, len(s.Omitted))
	for k := range s.Omitted {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Mean is the population mean of the finite values in values.
// It is NaN when no value is finite.
func Mean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// FiniteFraction is the share of finite values in values (1 for an empty slice).
func FiniteFraction(values []float64) float64 {
	if len(values) == 0 {
		return 1
	}
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return float64(n) / float64(len(values))
}
