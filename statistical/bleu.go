// Package statistical implements the n-gram and edit-distance metrics:
// BLEU, METEOR and TER.
package statistical

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/table"
)

// Smoothing methods for BLEU.
const (
	SmoothExp   = "exp"
	SmoothFloor = "floor"
	SmoothAddK  = "add-k"
	SmoothNone  = "none"
)

// BLEUOptions configures the BLEU scorer
type BLEUOptions struct {
	// Tokenize selects the tokenizer: "13a" (default) or "none"
	Tokenize string
	// Lowercase lowercases hypothesis and reference before tokenizing
	Lowercase bool
	// Smooth is one of "exp" (default), "floor", "add-k" or "none"
	Smooth string
	// SmoothValue overrides the smoothing constant (floor: 0.1, add-k: 1)
	SmoothValue float64
	// MaxOrder is the largest n-gram order (default 4)
	MaxOrder int
	// CorpusLevel makes Compute assign the corpus score to every row
	CorpusLevel bool
}

// BLEU is the sacreBLEU-compatible BLEU metric on a [0,100] scale.
type BLEU struct {
	opts     BLEUOptions
	tokenize func(string) []string
}

var (
	_ api.Scorer = (*BLEU)(nil)
	_ api.Metric = (*BLEU)(nil)
)

// NewBLEU validates opts and returns a BLEU scorer.
func NewBLEU(opts BLEUOptions) (*BLEU, error) {
	b := &BLEU{opts: opts}
	switch opts.Tokenize {
	case "", Tokenize13a:
		b.tokenize = tokenize13a
	case TokenizeNone:
		b.tokenize = tokenizeNone
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", opts.Tokenize)
	}
	switch opts.Smooth {
	case "":
		b.opts.Smooth = SmoothExp
	case SmoothExp, SmoothNone:
	case SmoothFloor:
		if opts.SmoothValue == 0 {
			b.opts.SmoothValue = 0.1
		}
	case SmoothAddK:
		if opts.SmoothValue == 0 {
			b.opts.SmoothValue = 1
		}
	default:
		return nil, fmt.Errorf("unknown smoothing method %q", opts.Smooth)
	}
	if opts.SmoothValue < 0 {
		return nil, fmt.Errorf("smoothing value must be non-negative, got %v", opts.SmoothValue)
	}
	if b.opts.MaxOrder == 0 {
		b.opts.MaxOrder = 4
	}
	if b.opts.MaxOrder < 1 {
		return nil, fmt.Errorf("max order must be positive, got %d", opts.MaxOrder)
	}
	return b, nil
}

func (b *BLEU) Name() string { return "BLEU" }

// Score computes sentence-level BLEU of in.Output against in.Expected. An
// empty reference scores 0.
func (b *BLEU) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	result := api.Score{
		Name:     "BLEU",
		Metadata: make(map[string]any),
	}
	stats := b.sentenceStats(in.Output, in.Expected)
	score, precisions, bp := b.scoreStats(stats, true)
	if stats.refLen == 0 {
		// nothing to match against
		score = 0
	}
	result.Score = score
	result.Metadata["precisions"] = precisions
	result.Metadata["brevity_penalty"] = bp
	result.Metadata["hyp_len"] = stats.hypLen
	result.Metadata["ref_len"] = stats.refLen
	return result
}

// Compute scores every row. At corpus level the statistics of all rows are
// pooled and every row receives the same corpus score.
func (b *BLEU) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	if !b.opts.CorpusLevel {
		return metric.ScoreRows(ctx, frame, b, table.ColumnTranslations, table.ColumnTargets)
	}
	inputs, err := metric.Inputs(frame, table.ColumnTranslations, table.ColumnTargets)
	if err != nil {
		return nil, err
	}
	hyps := make([]string, len(inputs))
	refs := make([]string, len(inputs))
	for i, in := range inputs {
		hyps[i], refs[i] = in.Output, in.Expected
	}
	score := b.Corpus(hyps, refs)
	scores := make([]float64, len(inputs))
	for i := range scores {
		scores[i] = score
	}
	return scores, nil
}

// Corpus computes corpus-level BLEU over aligned hypotheses and references.
func (b *BLEU) Corpus(hyps, refs []string) float64 {
	total := newBLEUStats(b.opts.MaxOrder)
	for i := range hyps {
		if i >= len(refs) {
			break
		}
		total.add(b.sentenceStats(hyps[i], refs[i]))
	}
	score, _, _ := b.scoreStats(total, false)
	return score
}

type bleuStats struct {
	hypLen, refLen int
	correct, total []float64
}

func newBLEUStats(order int) bleuStats {
	return bleuStats{correct: make([]float64, order), total: make([]float64, order)}
}

func (s *bleuStats) add(o bleuStats) {
	s.hypLen += o.hypLen
	s.refLen += o.refLen
	for n := range s.correct {
		s.correct[n] += o.correct[n]
		s.total[n] += o.total[n]
	}
}

func (b *BLEU) prepare(s string) []string {
	if b.opts.Lowercase {
		s = strings.ToLower(s)
	}
	return b.tokenize(strings.TrimSpace(s))
}

func (b *BLEU) sentenceStats(hyp, ref string) bleuStats {
	hypTokens := b.prepare(hyp)
	refTokens := b.prepare(ref)
	stats := newBLEUStats(b.opts.MaxOrder)
	stats.hypLen = len(hypTokens)
	stats.refLen = len(refTokens)

	for n := 1; n <= b.opts.MaxOrder; n++ {
		hypCounts := ngramCounts(hypTokens, n)
		refCounts := ngramCounts(refTokens, n)
		for gram, count := range hypCounts {
			stats.correct[n-1] += float64(min(count, refCounts[gram]))
		}
		if len(hypTokens) >= n {
			stats.total[n-1] = float64(len(hypTokens) - n + 1)
		}
	}
	return stats
}

func ngramCounts(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return counts
}

// scoreStats turns sufficient statistics into a score, the smoothed n-gram
// precisions in percent and the brevity penalty.
func (b *BLEU) scoreStats(s bleuStats, effectiveOrder bool) (float64, []float64, float64) {
	order := b.opts.MaxOrder
	precisions := make([]float64, order)
	correct := append([]float64(nil), s.correct...)
	total := append([]float64(nil), s.total...)

	bp := brevityPenalty(s.hypLen, s.refLen)
	if s.hypLen == 0 {
		return 0, precisions, bp
	}

	effOrder := order
	smoothMteval := 1.0
	for n := 1; n <= order; n++ {
		if b.opts.Smooth == SmoothAddK && n > 1 {
			correct[n-1] += b.opts.SmoothValue
			total[n-1] += b.opts.SmoothValue
		}
		if total[n-1] == 0 {
			break
		}
		if effectiveOrder {
			effOrder = n
		}
		if correct[n-1] == 0 {
			switch b.opts.Smooth {
			case SmoothExp:
				smoothMteval *= 2
				precisions[n-1] = 100 / (smoothMteval * total[n-1])
			case SmoothFloor:
				precisions[n-1] = 100 * b.opts.SmoothValue / total[n-1]
			}
			continue
		}
		precisions[n-1] = 100 * correct[n-1] / total[n-1]
	}

	logSum := 0.0
	for _, p := range precisions[:effOrder] {
		if p == 0 {
			return 0, precisions, bp
		}
		logSum += math.Log(p)
	}
	return bp * math.Exp(logSum/float64(effOrder)), precisions, bp
}

func brevityPenalty(hypLen, refLen int) float64 {
	if hypLen == 0 {
		return 0
	}
	if hypLen < refLen {
		return math.Exp(1 - float64(refLen)/float64(hypLen))
	}
	return 1
}
