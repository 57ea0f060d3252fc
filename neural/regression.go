package neural

import (
	"context"
	"fmt"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/table"
)

// DefaultBatchSize is the number of rows sent to a regressor at once.
const DefaultBatchSize = 16

// RegressorOptions configures a learned metric
type RegressorOptions struct {
	// Regressor predicts one score per input (required)
	Regressor api.Regressor
	// BatchSize is the number of rows per Predict call (default 16)
	BatchSize int
}

// Regression is a learned metric backed by an api.Regressor.
type Regression struct {
	name       string
	required   []string
	withSource bool
	opts       RegressorOptions
}

var _ api.Metric = (*Regression)(nil)

// NewBLEURT scores (translation, target) pairs.
func NewBLEURT(opts RegressorOptions) (*Regression, error) {
	return newRegression("BLEURT", false, opts)
}

// NewComet scores (source, translation, target) triples.
func NewComet(opts RegressorOptions) (*Regression, error) {
	return newRegression("Comet", true, opts)
}

func newRegression(name string, withSource bool, opts RegressorOptions) (*Regression, error) {
	if opts.Regressor == nil {
		return nil, fmt.Errorf("%s: regressor is required", name)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("%s: batch size must be positive, got %d", name, opts.BatchSize)
	}
	required := []string{table.ColumnTranslations, table.ColumnTargets}
	if withSource {
		required = append([]string{table.ColumnSources}, required...)
	}
	return &Regression{name: name, required: required, withSource: withSource, opts: opts}, nil
}

func (r *Regression) Name() string { return r.name }

func (r *Regression) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	inputs, err := metric.Inputs(frame, r.required...)
	if err != nil {
		return nil, err
	}
	if !r.withSource {
		for i := range inputs {
			inputs[i].Input = ""
		}
	}

	scores := make([]float64, 0, len(inputs))
	for start := 0; start < len(inputs); start += r.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+r.opts.BatchSize, len(inputs))
		batch, err := r.opts.Regressor.Predict(ctx, inputs[start:end])
		if err != nil {
			return nil, fmt.Errorf("rows %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("rows %d-%d: regressor returned %d scores for %d inputs", start, end-1, len(batch), end-start)
		}
		scores = append(scores, batch...)
	}
	return scores, nil
}

// Score runs the regressor on a single record.
func (r *Regression) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	result := api.Score{Name: r.name}
	if in.Expected == "" {
		result.Error = api.ErrNoExpectedValue
		return result
	}
	if !r.withSource {
		in.Input = ""
	}
	scores, err := r.opts.Regressor.Predict(ctx, []api.ScoreInputs{in})
	if err != nil {
		result.Error = err
		return result
	}
	if len(scores) != 1 {
		result.Error = fmt.Errorf("regressor returned %d scores for 1 input", len(scores))
		return result
	}
	result.Score = scores[0]
	return result
}
