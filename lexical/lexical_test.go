package lexical

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/table"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Well-known 42 facts, (mostly) TRUE!")
	assert.Equal(t, []string{"well", "known", "facts", "mostly", "true"}, got)
	assert.Empty(t, Tokenize("  123 ... "))
}

func TestAnalysis_Formulas(t *testing.T) {
	a := analyze("the cat and the dog and the bird")
	require.Equal(t, 8, a.Words)
	require.Equal(t, 5, a.Terms)

	assert.InDelta(t, 5.0/8, a.TTR(), 1e-12)
	assert.InDelta(t, 5/math.Sqrt(8), a.RTTR(), 1e-12)
	assert.InDelta(t, 5/math.Sqrt(16), a.CTTR(), 1e-12)
	assert.InDelta(t, math.Log(5)/math.Log(8), a.Herdan(), 1e-12)
}

func TestAnalysis_Undefined(t *testing.T) {
	empty := analyze("")
	assert.True(t, math.IsNaN(empty.TTR()))
	assert.True(t, math.IsNaN(empty.RTTR()))
	assert.True(t, math.IsNaN(empty.CTTR()))
	assert.True(t, math.IsNaN(empty.MTLD(DefaultThreshold)))
	assert.True(t, math.IsNaN(empty.Herdan()))

	single := analyze("word")
	assert.True(t, math.IsNaN(single.Herdan()))
	assert.Equal(t, 1.0, single.TTR())
}

func TestAnalysis_MTLD(t *testing.T) {
	// All distinct words never reach the threshold: one full factor.
	distinct := analyze("one two three four")
	assert.InDelta(t, 4.0, distinct.MTLD(DefaultThreshold), 1e-12)

	// "a a": the second word drops TTR to 0.5, closing a factor in each
	// direction.
	repeated := analyze("a a")
	assert.InDelta(t, 2.0, repeated.MTLD(DefaultThreshold), 1e-12)

	// "a b a": the third word drops TTR to 2/3 and closes one factor.
	aba := analyze("a b a")
	assert.InDelta(t, 3.0, aba.MTLD(DefaultThreshold), 1e-12)
}

func TestMetric_Compute(t *testing.T) {
	frame := table.FromRecords([]table.Record{
		{Source: "src", Translation: "the cat and the dog", Target: "a b c"},
		{Source: "src", Translation: "", Target: "x"},
	})
	analyzer := NewAnalyzer()

	words, err := New(Words, Options{Analyzer: analyzer})
	require.NoError(t, err)
	ttr, err := New(TTR, Options{Analyzer: analyzer})
	require.NoError(t, err)
	targetTerms, err := New(Terms, Options{Field: table.ColumnTargets, Analyzer: analyzer})
	require.NoError(t, err)

	assert.Equal(t, "LexicalRichnessWords", words.Name())

	got, err := words.Compute(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 0}, got)

	got, err = ttr.Compute(context.Background(), frame)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got[0], 1e-12)
	assert.True(t, math.IsNaN(got[1]))

	// translations were analyzed once and shared by both metrics
	assert.Equal(t, 2, analyzer.Len())

	got, err = targetTerms.Compute(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, got)
}

func TestMetric_MissingField(t *testing.T) {
	m, err := New(MTLD, Options{Field: "paraphrases"})
	require.NoError(t, err)
	_, err = m.Compute(context.Background(), table.FromRecords([]table.Record{{Translation: "x"}}))
	assert.ErrorIs(t, err, table.ErrMissingColumn)
}

func TestMetric_ScoreMatchesCompute(t *testing.T) {
	rec := table.Record{Source: "один два два", Translation: "the cat and the dog", Target: "a b c"}
	frame := table.FromRecords([]table.Record{rec})
	in := api.ScoreInputs{Input: rec.Source, Output: rec.Translation, Expected: rec.Target}

	for _, field := range []string{table.ColumnSources, table.ColumnTranslations, table.ColumnTargets} {
		t.Run(field, func(t *testing.T) {
			m, err := New(Terms, Options{Field: field})
			require.NoError(t, err)
			col, err := m.Compute(context.Background(), frame)
			require.NoError(t, err)
			got := m.Score(context.Background(), in)
			require.NoError(t, got.Error)
			assert.Equal(t, col[0], got.Score)
		})
	}

	m, err := New(Terms, Options{Field: "paraphrases"})
	require.NoError(t, err)
	got := m.Score(context.Background(), in)
	assert.ErrorIs(t, got.Error, table.ErrMissingColumn)
	assert.True(t, math.IsNaN(got.Score))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("Yule", Options{})
	assert.Error(t, err)
	_, err = New(MTLD, Options{Threshold: 1.5})
	assert.Error(t, err)
}
