package statistical

import (
	"context"
	"fmt"
	"math"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/table"
)

const (
	terCostIns   = 1
	terCostDel   = 1
	terCostSub   = 1
	terCostShift = 1

	terMaxShiftSize       = 10
	terMaxShiftDist       = 50
	terMaxShiftCandidates = 1000
	terBeamWidth          = 25

	terInfinity = math.MaxInt32
)

const (
	opNop   byte = ' '
	opSub   byte = 's'
	opIns   byte = 'i'
	opDel   byte = 'd'
	opUndef byte = 'x'
)

// TEROptions configures the TER scorer
type TEROptions struct {
	// CaseSensitive disables lowercasing
	CaseSensitive bool
	// Normalize applies tercom's general and western tokenization
	Normalize bool
	// NoPunct removes punctuation before scoring
	NoPunct bool
}

// TER is the translation edit rate: the minimum number of insertions,
// deletions, substitutions and block shifts that turn the translation into
// the reference, divided by the reference length, in percent. Lower is
// better and the value may exceed 100.
type TER struct {
	opts TEROptions
}

var (
	_ api.Scorer = (*TER)(nil)
	_ api.Metric = (*TER)(nil)
)

func NewTER(opts TEROptions) *TER {
	return &TER{opts: opts}
}

func (t *TER) Name() string { return "TER" }

func (t *TER) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	return metric.ScoreRows(ctx, frame, t, table.ColumnTranslations, table.ColumnTargets)
}

func (t *TER) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	result := api.Score{
		Name:     "TER",
		Metadata: make(map[string]any),
	}
	hyp := terTokenize(in.Output, t.opts.CaseSensitive, t.opts.Normalize, t.opts.NoPunct)
	ref := terTokenize(in.Expected, t.opts.CaseSensitive, t.opts.Normalize, t.opts.NoPunct)

	edits, err := translationEditRate(hyp, ref)
	if err != nil {
		result.Error = fmt.Errorf("%w: %v", api.ErrComputation, err)
		return result
	}

	result.Score = terScore(edits, len(ref))
	result.Metadata["edits"] = edits
	result.Metadata["ref_len"] = len(ref)
	return result
}

func terScore(edits, refLen int) float64 {
	if refLen > 0 {
		return 100 * float64(edits) / float64(refLen)
	}
	if edits > 0 {
		return 100
	}
	return 0
}

// translationEditRate returns the number of edits including shifts.
func translationEditRate(hyp, ref []string) (int, error) {
	if len(ref) == 0 {
		return len(hyp), nil
	}
	numShifts := 0
	input := hyp
	for {
		delta, next, checked, err := shiftOnce(input, ref)
		if err != nil {
			return 0, err
		}
		if checked >= terMaxShiftCandidates || delta <= 0 {
			break
		}
		numShifts++
		input = next
	}
	edits, _, err := beamEditDistance(input, ref)
	if err != nil {
		return 0, err
	}
	return numShifts + edits, nil
}

type editCell struct {
	cost int
	op   byte
}

// beamEditDistance computes the word-level Levenshtein distance with a
// diagonal beam and returns the trace of operations turning hyp into ref.
func beamEditDistance(hyp, ref []string) (int, []byte, error) {
	lenH, lenR := len(hyp), len(ref)
	mat := make([][]editCell, lenH+1)
	mat[0] = make([]editCell, lenR+1)
	for j := range mat[0] {
		mat[0][j] = editCell{cost: j * terCostIns, op: opIns}
	}

	ratio := 1.0
	if lenH > 0 {
		ratio = float64(lenR) / float64(lenH)
	}
	for i := 1; i <= lenH; i++ {
		diag := int(math.Floor(float64(i) * ratio))
		minJ := max(0, diag-terBeamWidth)
		maxJ := min(lenR+1, diag+terBeamWidth)
		if i == lenH {
			maxJ = lenR + 1
		}
		row := make([]editCell, lenR+1)
		for j := range row {
			row[j] = editCell{cost: terInfinity, op: opUndef}
		}
		for j := minJ; j < maxJ; j++ {
			if j == 0 {
				row[j] = editCell{cost: mat[i-1][j].cost + terCostDel, op: opDel}
				continue
			}
			subCost, subOp := terCostSub, opSub
			if hyp[i-1] == ref[j-1] {
				subCost, subOp = 0, opNop
			}
			// Sub/no-op first, then deletion, then insertion; the trace is
			// flipped later so this matches tercom's preference.
			candidates := [3]editCell{
				{cost: mat[i-1][j-1].cost + subCost, op: subOp},
				{cost: mat[i-1][j].cost + terCostDel, op: opDel},
				{cost: row[j-1].cost + terCostIns, op: opIns},
			}
			for _, c := range candidates {
				if row[j].cost > c.cost {
					row[j] = c
				}
			}
		}
		mat[i] = row
	}

	var trace []byte
	i, j := lenH, lenR
	for i > 0 || j > 0 {
		op := mat[i][j].op
		trace = append(trace, op)
		switch op {
		case opSub, opNop:
			i--
			j--
		case opIns:
			j--
		case opDel:
			i--
		default:
			return 0, nil, fmt.Errorf("unexpected edit operation %q at (%d,%d)", op, i, j)
		}
	}
	for l, r := 0, len(trace)-1; l < r; l, r = l+1, r-1 {
		trace[l], trace[r] = trace[r], trace[l]
	}
	return mat[lenH][lenR].cost, trace, nil
}

// flipTrace swaps insertions and deletions so the trace describes the
// reference-to-hypothesis alignment.
func flipTrace(trace []byte) []byte {
	out := make([]byte, len(trace))
	for k, op := range trace {
		switch op {
		case opIns:
			out[k] = opDel
		case opDel:
			out[k] = opIns
		default:
			out[k] = op
		}
	}
	return out
}

// traceToAlignment maps each reference position to a hypothesis position
// and marks the erroneous positions on both sides.
func traceToAlignment(trace []byte) (align map[int]int, refErr, hypErr []int) {
	posHyp, posRef := -1, -1
	align = make(map[int]int)
	for _, op := range trace {
		switch op {
		case opNop:
			posHyp++
			posRef++
			align[posRef] = posHyp
			hypErr = append(hypErr, 0)
			refErr = append(refErr, 0)
		case opSub:
			posHyp++
			posRef++
			align[posRef] = posHyp
			hypErr = append(hypErr, 1)
			refErr = append(refErr, 1)
		case opIns:
			posHyp++
			hypErr = append(hypErr, 1)
		case opDel:
			posRef++
			align[posRef] = posHyp
			refErr = append(refErr, 1)
		}
	}
	return align, refErr, hypErr
}

type shiftedPair struct {
	startH, startR, length int
}

// findShiftedPairs lists matching word blocks between hyp and ref that are
// close enough to be shift candidates.
func findShiftedPairs(hyp, ref []string) []shiftedPair {
	var pairs []shiftedPair
	for startH := range hyp {
		for startR := range ref {
			if abs(startR-startH) > terMaxShiftDist {
				continue
			}
			length := 0
			for startH+length < len(hyp) && startR+length < len(ref) &&
				hyp[startH+length] == ref[startR+length] && length < terMaxShiftSize {
				length++
				pairs = append(pairs, shiftedPair{startH: startH, startR: startR, length: length})
			}
		}
	}
	return pairs
}

// performShift moves the block hyp[start:start+length] so that it lands
// before position target of the original sequence.
func performShift(words []string, start, length, target int) []string {
	out := make([]string, 0, len(words))
	switch {
	case target < start:
		out = append(out, words[:target]...)
		out = append(out, words[start:start+length]...)
		out = append(out, words[target:start]...)
		out = append(out, words[start+length:]...)
	case target > start+length:
		out = append(out, words[:start]...)
		out = append(out, words[start+length:target]...)
		out = append(out, words[start:start+length]...)
		out = append(out, words[target:]...)
	default:
		end := min(length+target, len(words))
		out = append(out, words[:start]...)
		out = append(out, words[start+length:end]...)
		out = append(out, words[start:start+length]...)
		out = append(out, words[end:]...)
	}
	return out
}

type shiftCandidate struct {
	gain, length, negStartH, negIdx int
	shifted                         []string
}

func (c shiftCandidate) greater(o shiftCandidate) bool {
	if c.gain != o.gain {
		return c.gain > o.gain
	}
	if c.length != o.length {
		return c.length > o.length
	}
	if c.negStartH != o.negStartH {
		return c.negStartH > o.negStartH
	}
	if c.negIdx != o.negIdx {
		return c.negIdx > o.negIdx
	}
	for k := 0; k < len(c.shifted) && k < len(o.shifted); k++ {
		if c.shifted[k] != o.shifted[k] {
			return c.shifted[k] > o.shifted[k]
		}
	}
	return len(c.shifted) > len(o.shifted)
}

// shiftOnce tries the candidate shifts of hyp and returns the best gain in
// edit distance together with the shifted sequence.
func shiftOnce(hyp, ref []string) (int, []string, int, error) {
	edits, trace, err := beamEditDistance(hyp, ref)
	if err != nil {
		return 0, nil, 0, err
	}
	align, refErr, hypErr := traceToAlignment(flipTrace(trace))

	var best *shiftCandidate
	checked := 0
	for _, p := range findShiftedPairs(hyp, ref) {
		if sumRange(hypErr, p.startH, p.startH+p.length) == 0 {
			continue
		}
		if sumRange(refErr, p.startR, p.startR+p.length) == 0 {
			continue
		}
		if a := align[p.startR]; p.startH <= a && a < p.startH+p.length {
			continue
		}

		prevIdx := -1
	offsets:
		for offset := -1; offset < p.length; offset++ {
			var idx int
			switch pos := p.startR + offset; {
			case pos == -1:
				idx = 0
			case pos >= 0 && pos < len(ref):
				a, ok := align[pos]
				if !ok {
					break offsets
				}
				idx = a + 1
			default:
				break offsets
			}
			if idx == prevIdx {
				continue
			}
			prevIdx = idx

			shifted := performShift(hyp, p.startH, p.length, idx)
			candEdits, _, err := beamEditDistance(shifted, ref)
			if err != nil {
				return 0, nil, 0, err
			}
			cand := shiftCandidate{
				gain:      edits - candEdits - terCostShift,
				length:    p.length,
				negStartH: -p.startH,
				negIdx:    -idx,
				shifted:   shifted,
			}
			checked++
			if best == nil || cand.greater(*best) {
				best = &cand
			}
		}
		if checked >= terMaxShiftCandidates {
			break
		}
	}

	if best == nil {
		return 0, hyp, checked, nil
	}
	return best.gain, best.shifted, checked, nil
}

func sumRange(values []int, from, to int) int {
	to = min(to, len(values))
	s := 0
	for k := from; k < to; k++ {
		s += values[k]
	}
	return s
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
