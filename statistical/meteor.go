package statistical

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/table"
)

// METEOROptions configures the METEOR scorer.
// Zero Alpha, Beta and Gamma select 0.9, 3 and 0.5.
type METEOROptions struct {
	Alpha float64
	Beta  float64
	Gamma float64
	// Stemmer is used for the stem matching stage. Nil selects the
	// English Snowball stemmer.
	Stemmer api.Stemmer
	// Synonyms enables the synonym matching stage when set
	Synonyms api.SynonymProvider
	// Tokenize splits text into words; nil selects WordTokenize
	Tokenize func(string) []string
}

// METEOR scores unigram alignment between translation and reference with
// exact, stem and synonym matching and a fragmentation penalty. The score
// is in [0,1].
type METEOR struct {
	opts METEOROptions
}

var (
	_ api.Scorer = (*METEOR)(nil)
	_ api.Metric = (*METEOR)(nil)
)

// NewMETEOR returns a METEOR scorer with defaults applied.
func NewMETEOR(opts METEOROptions) (*METEOR, error) {
	if opts.Alpha == 0 {
		opts.Alpha = 0.9
	}
	if opts.Beta == 0 {
		opts.Beta = 3
	}
	if opts.Gamma == 0 {
		opts.Gamma = 0.5
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, fmt.Errorf("alpha must be in [0,1], got %v", opts.Alpha)
	}
	if opts.Gamma < 0 || opts.Gamma > 1 {
		return nil, fmt.Errorf("gamma must be in [0,1], got %v", opts.Gamma)
	}
	if opts.Stemmer == nil {
		s, err := NewSnowballStemmer("english")
		if err != nil {
			return nil, err
		}
		opts.Stemmer = s
	}
	if opts.Tokenize == nil {
		opts.Tokenize = WordTokenize
	}
	return &METEOR{opts: opts}, nil
}

func (m *METEOR) Name() string { return "METEOR" }

func (m *METEOR) Compute(ctx context.Context, frame *table.Frame) ([]float64, error) {
	return metric.ScoreRows(ctx, frame, m, table.ColumnTranslations, table.ColumnTargets)
}

func (m *METEOR) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	result := api.Score{
		Name:     "METEOR",
		Metadata: make(map[string]any),
	}
	hyp := enumerate(m.opts.Tokenize(strings.ToLower(in.Output)))
	ref := enumerate(m.opts.Tokenize(strings.ToLower(in.Expected)))
	hypLen, refLen := len(hyp), len(ref)

	matches, err := m.align(ctx, hyp, ref)
	if err != nil {
		result.Error = err
		return result
	}

	result.Metadata["matches"] = len(matches)
	if len(matches) == 0 {
		result.Score = 0
		return result
	}

	precision := float64(len(matches)) / float64(hypLen)
	recall := float64(len(matches)) / float64(refLen)
	fmean := precision * recall / (m.opts.Alpha*precision + (1-m.opts.Alpha)*recall)
	chunks := countChunks(matches)
	fragFrac := float64(chunks) / float64(len(matches))
	penalty := m.opts.Gamma * math.Pow(fragFrac, m.opts.Beta)

	result.Score = (1 - penalty) * fmean
	result.Metadata["chunks"] = chunks
	result.Metadata["precision"] = precision
	result.Metadata["recall"] = recall
	result.Metadata["penalty"] = penalty
	return result
}

type enumWord struct {
	idx  int
	word string
}

// wordMatch pairs a hypothesis position with a reference position.
type wordMatch struct {
	hyp, ref int
}

func enumerate(tokens []string) []enumWord {
	out := make([]enumWord, len(tokens))
	for i, t := range tokens {
		out[i] = enumWord{idx: i, word: t}
	}
	return out
}

// align runs the exact, stem and synonym stages in order. Each stage only
// sees the words left unmatched by the previous ones.
func (m *METEOR) align(ctx context.Context, hyp, ref []enumWord) ([]wordMatch, error) {
	matches, hyp, ref := matchEnums(hyp, ref, func(h, r string) bool { return h == r })

	if len(hyp) > 0 && len(ref) > 0 {
		stemmedHyp, err := m.stemAll(ctx, hyp)
		if err != nil {
			return nil, err
		}
		stemmedRef, err := m.stemAll(ctx, ref)
		if err != nil {
			return nil, err
		}
		var stemMatches []wordMatch
		stemMatches, stemmedHyp, stemmedRef = matchEnums(stemmedHyp, stemmedRef, func(h, r string) bool { return h == r })
		matches = append(matches, stemMatches...)
		hyp = restoreWords(stemmedHyp, hyp)
		ref = restoreWords(stemmedRef, ref)
	}

	if m.opts.Synonyms != nil && len(hyp) > 0 && len(ref) > 0 {
		synMatches, err := m.matchSynonyms(ctx, hyp, ref)
		if err != nil {
			return nil, err
		}
		matches = append(matches, synMatches...)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].hyp < matches[j].hyp })
	return matches, nil
}

func (m *METEOR) stemAll(ctx context.Context, words []enumWord) ([]enumWord, error) {
	plain := make([]string, len(words))
	for i, w := range words {
		plain[i] = w.word
	}
	stems, err := m.opts.Stemmer.Stem(ctx, plain)
	if err != nil {
		return nil, fmt.Errorf("stem: %w", err)
	}
	if len(stems) != len(plain) {
		return nil, fmt.Errorf("stemmer returned %d stems for %d words", len(stems), len(plain))
	}
	out := make([]enumWord, len(words))
	for i, w := range words {
		out[i] = enumWord{idx: w.idx, word: stems[i]}
	}
	return out, nil
}

// restoreWords maps the surviving stemmed entries back to their surface
// forms so the synonym stage sees original words.
func restoreWords(stemmed, original []enumWord) []enumWord {
	byIdx := make(map[int]string, len(original))
	for _, w := range original {
		byIdx[w.idx] = w.word
	}
	out := make([]enumWord, len(stemmed))
	for i, w := range stemmed {
		out[i] = enumWord{idx: w.idx, word: byIdx[w.idx]}
	}
	return out
}

// matchEnums greedily pairs words scanning both lists from the end and
// removes each matched pair. It returns the matches and the unmatched rest.
func matchEnums(hyp, ref []enumWord, equal func(h, r string) bool) ([]wordMatch, []enumWord, []enumWord) {
	hyp = append([]enumWord(nil), hyp...)
	ref = append([]enumWord(nil), ref...)
	var matches []wordMatch
	for i := len(hyp) - 1; i >= 0; i-- {
		for j := len(ref) - 1; j >= 0; j-- {
			if !equal(hyp[i].word, ref[j].word) {
				continue
			}
			matches = append(matches, wordMatch{hyp: hyp[i].idx, ref: ref[j].idx})
			hyp = append(hyp[:i], hyp[i+1:]...)
			ref = append(ref[:j], ref[j+1:]...)
			break
		}
	}
	return matches, hyp, ref
}

func (m *METEOR) matchSynonyms(ctx context.Context, hyp, ref []enumWord) ([]wordMatch, error) {
	hyp = append([]enumWord(nil), hyp...)
	ref = append([]enumWord(nil), ref...)
	var matches []wordMatch
	for i := len(hyp) - 1; i >= 0; i-- {
		syns, err := m.opts.Synonyms.Synonyms(ctx, hyp[i].word)
		if err != nil {
			return nil, fmt.Errorf("synonyms of %q: %w", hyp[i].word, err)
		}
		set := map[string]struct{}{hyp[i].word: {}}
		for _, s := range syns {
			if !strings.Contains(s, "_") {
				set[s] = struct{}{}
			}
		}
		for j := len(ref) - 1; j >= 0; j-- {
			if _, ok := set[ref[j].word]; !ok {
				continue
			}
			matches = append(matches, wordMatch{hyp: hyp[i].idx, ref: ref[j].idx})
			hyp = append(hyp[:i], hyp[i+1:]...)
			ref = append(ref[:j], ref[j+1:]...)
			break
		}
	}
	return matches, nil
}

// countChunks counts runs of matches that are contiguous in both the
// hypothesis and the reference. Matches must be sorted by hypothesis index.
func countChunks(matches []wordMatch) int {
	chunks := 1
	for i := 0; i+1 < len(matches); i++ {
		if matches[i+1].hyp == matches[i].hyp+1 && matches[i+1].ref == matches[i].ref+1 {
			continue
		}
		chunks++
	}
	return chunks
}
