// Package metric turns per-record scorers into column metrics.
package metric

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/table"
)

// RowErrors is returned together with a full-length score slice when some
// rows failed. Failed rows hold NaN.
type RowErrors struct {
	Rows   int
	Errors map[int]error
}

func (e *RowErrors) Error() string {
	first := -1
	for i := range e.Errors {
		if first < 0 || i < first {
			first = i
		}
	}
	return fmt.Sprintf("%d of %d rows failed; row %d: %v", len(e.Errors), e.Rows, first, e.Errors[first])
}

// FailedRows returns the failed row indexes in order.
func (e *RowErrors) FailedRows() []int {
	rows := make([]int, 0, len(e.Errors))
	for i := range e.Errors {
		rows = append(rows, i)
	}
	sort.Ints(rows)
	return rows
}

// Inputs builds one ScoreInputs per row. Only the listed columns are
// required; absent optional columns leave their field empty.
func Inputs(frame *table.Frame, required ...string) ([]api.ScoreInputs, error) {
	if err := frame.Require(required...); err != nil {
		return nil, err
	}
	in := make([]api.ScoreInputs, frame.Len())
	if frame.Has(table.ColumnTranslations) {
		for i := range in {
			in[i].Output = frame.Value(table.ColumnTranslations, i)
		}
	}
	if frame.Has(table.ColumnTargets) {
		for i := range in {
			in[i].Expected = frame.Value(table.ColumnTargets, i)
		}
	}
	if frame.Has(table.ColumnSources) {
		for i := range in {
			in[i].Input = frame.Value(table.ColumnSources, i)
		}
	}
	return in, nil
}

// ScoreRows scores every row with s. A row whose Score carries an error is
// NaN and listed in the returned *RowErrors; the slice is always full length
// unless the context is cancelled.
func ScoreRows(ctx context.Context, frame *table.Frame, s api.Scorer, required ...string) ([]float64, error) {
	inputs, err := Inputs(frame, required...)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(inputs))
	var rowErrs map[int]error
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := s.Score(ctx, in)
		if res.Error != nil {
			if rowErrs == nil {
				rowErrs = make(map[int]error)
			}
			rowErrs[i] = res.Error
			scores[i] = math.NaN()
			continue
		}
		scores[i] = res.Score
	}
	if rowErrs != nil {
		return scores, &RowErrors{Rows: len(inputs), Errors: rowErrs}
	}
	return scores, nil
}

// FromScorer wraps a per-row scorer as a column metric.
func FromScorer(name string, s api.Scorer, required ...string) api.Metric {
	return &rowMetric{name: name, scorer: s, required: required}
}

type rowMetric struct {
	name     string
	scorer   api.Scorer
	required []string
}

func (m *rowMetric) Name() string { return m.name }

func (m *rowMetric) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	return ScoreRows(ctx, frame, m.scorer, m.required...)
}
