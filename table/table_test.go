package table

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockFrame() *Frame {
	return FromRecords([]Record{
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

func TestFrame_RecordsAndColumns(t *testing.T) {
	f := mockFrame()
	require.Equal(t, 2, f.Len())
	assert.Equal(t, RequiredColumns, f.Columns())

	records, err := f.Records()
	require.NoError(t, err)
	assert.Equal(t, "Слезами горю не поможешь.", records[1].Target)

	col, err := f.Column(ColumnTranslations)
	require.NoError(t, err)
	col[0] = "mutated"
	assert.Equal(t, "Он едет в библиотеку, чтобы читать книги.", f.Value(ColumnTranslations, 0))
}

func TestFrame_MissingColumn(t *testing.T) {
	f, err := NewFrame("sources", "translations")
	require.NoError(t, err)
	require.NoError(t, f.AppendRow("a", "b"))

	_, err = f.Records()
	var mce *MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, ColumnTargets, mce.Column)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestFrame_RejectsBadRows(t *testing.T) {
	_, err := NewFrame("a", "a")
	assert.Error(t, err)

	f, err := NewFrame("a", "b")
	require.NoError(t, err)
	assert.Error(t, f.AppendRow("only one"))
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		isNaN  bool
	}{
		{name: "plain", values: []float64{75.062, 6.567}, want: 40.8145},
		{name: "ignores NaN", values: []float64{1, math.NaN(), 3}, want: 2},
		{name: "ignores Inf", values: []float64{math.Inf(1), 4}, want: 4},
		{name: "all NaN", values: []float64{math.NaN(), math.NaN()}, isNaN: true},
		{name: "empty", values: nil, isNaN: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.values)
			if tt.isNaN {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScoreTable_AddAndAggregate(t *testing.T) {
	st := NewScoreTable(mockFrame())
	require.NoError(t, st.Add("BLEU", []float64{75.062, 6.567}))
	assert.Error(t, st.Add("BLEU", []float64{1, 2}), "duplicate metric")
	assert.Error(t, st.Add("TER", []float64{1}), "length mismatch")
	assert.Error(t, st.Add(ColumnSources, []float64{1, 2}), "collides with input column")

	st.Omit("BLEURT", errors.New("no endpoint"))

	mean, err := st.Mean("BLEU")
	require.NoError(t, err)
	assert.InDelta(t, 40.815, mean, 0.01)

	_, err = st.Mean("BLEURT")
	assert.Error(t, err)

	assert.Equal(t, []string{"sources", "translations", "targets", "BLEU"}, st.Columns())
	summary := st.Summary()
	assert.Equal(t, []string{"BLEU"}, summary.Computed)
	assert.Equal(t, []string{"BLEURT"}, summary.OmittedNames())
	assert.Len(t, st.Means(), 1)
}

func TestScoreTable_WriteCSV(t *testing.T) {
	st := NewScoreTable(mockFrame())
	require.NoError(t, st.Add("TER", []float64{14.285714285714285, math.NaN()}))

	var buf bytes.Buffer
	require.NoError(t, st.WriteCSV(&buf, ','))

	back, err := ReadCSV(strings.NewReader(buf.String()), ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"sources", "translations", "targets", "TER"}, back.Columns())
	assert.Equal(t, "14.285714285714285", back.Value("TER", 0))
	assert.Equal(t, "", back.Value("TER", 1))
	assert.Equal(t, "Нет смысла плакать над пролитым молоком.", back.Value(ColumnTranslations, 1))
}

func TestScoreTable_ArrowFile(t *testing.T) {
	st := NewScoreTable(mockFrame())
	require.NoError(t, st.Add("METEOR", []float64{0.882, 0.096}))

	path := filepath.Join(t.TempDir(), "scores.arrow")
	require.NoError(t, st.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, back.Len())
	assert.Equal(t, "Он ходит в библиотеку, чтобы читать книги.", back.Value(ColumnTargets, 0))
	assert.True(t, strings.HasPrefix(back.Value("METEOR", 1), "0.096"))
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("data/mock.TSV")
	require.NoError(t, err)
	assert.Equal(t, FormatTSV, f)

	_, err = FormatFromPath("data/mock.parquet")
	assert.Error(t, err)
}
