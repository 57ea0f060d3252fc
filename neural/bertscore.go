// Package neural implements embedding and learned-regressor metrics:
// BERTScore, BLEURT and Comet.
package neural

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/statistical"
	"github.com/datar-psa/mtdetect/table"
)

// BERTScore measures.
const (
	MeasureF1        = "f1"
	MeasurePrecision = "precision"
	MeasureRecall    = "recall"
)

// ErrNoEmbeddableTokens is reported for a row whose translation or target
// has no token known to the embedding model.
var ErrNoEmbeddableTokens = errors.New("no embeddable tokens")

// BERTScoreOptions configures the BERTScore metric
type BERTScoreOptions struct {
	// Embedder provides one vector per token (required)
	Embedder api.TokenEmbedder
	// Measure is "f1" (default), "precision" or "recall"
	Measure string
	// Concurrency bounds rows embedded in parallel (default 1)
	Concurrency int
	// Tokenize splits text into tokens; nil lowercases and uses
	// statistical.WordTokenize
	Tokenize func(string) []string
}

// BERTScore greedily matches every token of one side to its most similar
// token on the other side by cosine similarity of token embeddings.
type BERTScore struct {
	opts BERTScoreOptions
}

var (
	_ api.Scorer = (*BERTScore)(nil)
	_ api.Metric = (*BERTScore)(nil)
)

func NewBERTScore(opts BERTScoreOptions) (*BERTScore, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	switch opts.Measure {
	case "":
		opts.Measure = MeasureF1
	case MeasureF1, MeasurePrecision, MeasureRecall:
	default:
		return nil, fmt.Errorf("unknown measure %q", opts.Measure)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Tokenize == nil {
		opts.Tokenize = func(s string) []string {
			return statistical.WordTokenize(strings.ToLower(s))
		}
	}
	return &BERTScore{opts: opts}, nil
}

func (b *BERTScore) Name() string { return "BERTScore" }

func (b *BERTScore) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	result := api.Score{
		Name:     "BERTScore",
		Metadata: make(map[string]any),
	}
	if in.Expected == "" {
		result.Error = api.ErrNoExpectedValue
		return result
	}

	cand, err := b.embed(ctx, in.Output)
	if err != nil {
		result.Error = fmt.Errorf("failed to embed output: %w", err)
		return result
	}
	ref, err := b.embed(ctx, in.Expected)
	if err != nil {
		result.Error = fmt.Errorf("failed to embed expected: %w", err)
		return result
	}

	precision := greedyMatch(cand, ref)
	recall := greedyMatch(ref, cand)
	f1 := 0.0
	if precision+recall != 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	switch b.opts.Measure {
	case MeasurePrecision:
		result.Score = precision
	case MeasureRecall:
		result.Score = recall
	default:
		result.Score = f1
	}
	result.Metadata["precision"] = precision
	result.Metadata["recall"] = recall
	result.Metadata["f1"] = f1
	result.Metadata["candidate_tokens"] = len(cand)
	result.Metadata["reference_tokens"] = len(ref)
	return result
}

// Compute scores rows with up to Concurrency rows in flight.
func (b *BERTScore) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	inputs, err := metric.Inputs(frame, table.ColumnTranslations, table.ColumnTargets)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(inputs))
	rowErrs := make([]error, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := b.Score(gctx, in)
			scores[i] = res.Score
			rowErrs[i] = res.Error
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failed map[int]error
	for i, err := range rowErrs {
		if err == nil {
			continue
		}
		if failed == nil {
			failed = make(map[int]error)
		}
		failed[i] = err
		scores[i] = math.NaN()
	}
	if failed != nil {
		return scores, &metric.RowErrors{Rows: len(inputs), Errors: failed}
	}
	return scores, nil
}

// embed returns the vectors of the known tokens of text.
func (b *BERTScore) embed(ctx context.Context, text string) ([][]float64, error) {
	tokens := b.opts.Tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrNoEmbeddableTokens
	}
	vecs, err := b.opts.Embedder.EmbedTokens(ctx, tokens)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(tokens) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d tokens", len(vecs), len(tokens))
	}
	known := vecs[:0:0]
	for _, v := range vecs {
		if v != nil {
			known = append(known, v)
		}
	}
	if len(known) == 0 {
		return nil, ErrNoEmbeddableTokens
	}
	return known, nil
}

// greedyMatch averages, over the vectors of from, the best cosine
// similarity against any vector of to.
func greedyMatch(from, to [][]float64) float64 {
	total := 0.0
	for _, f := range from {
		best := math.Inf(-1)
		for _, t := range to {
			if sim := cosineSimilarity(f, t); sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(from))
}

// cosineSimilarity computes the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (normA * normB)
}
