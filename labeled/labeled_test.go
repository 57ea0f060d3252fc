package labeled

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runeBPE encodes each rune as its code point.
type runeBPE struct{}

func (runeBPE) Encode(text string, allowed, disallowed []string) []int {
	var out []int
	for _, r := range text {
		out = append(out, int(r))
	}
	return out
}

func newTestTokenizer(t *testing.T, maxLength int) *TiktokenTokenizer {
	t.Helper()
	tok, err := NewTiktokenTokenizer("cl100k_base", maxLength)
	require.NoError(t, err)
	tok.enc = runeBPE{}
	return tok
}

func TestTiktokenTokenizer_PadAndTruncate(t *testing.T) {
	tok := newTestTokenizer(t, 3)

	enc, err := tok.Encode([]string{"ab", "wxyz", ""})
	require.NoError(t, err)

	wantIDs := [][]int32{{'a', 'b', 0}, {'w', 'x', 'y'}, {0, 0, 0}}
	wantMask := [][]int32{{1, 1, 0}, {1, 1, 1}, {0, 0, 0}}
	if diff := cmp.Diff(wantIDs, enc.InputIDs); diff != "" {
		t.Errorf("InputIDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantMask, enc.AttentionMask); diff != "" {
		t.Errorf("AttentionMask mismatch (-want +got):\n%s", diff)
	}
}

func TestNewTiktokenTokenizer_Invalid(t *testing.T) {
	_, err := NewTiktokenTokenizer("", 0)
	assert.Error(t, err)
	_, err = NewTiktokenTokenizer("cl100k_base", -1)
	assert.Error(t, err)
}

func mockDataset(t *testing.T) *Dataset {
	t.Helper()
	d, err := FromTexts(
		[]string{"good evening", "i am sorry"},
		[]string{"речев йырбод", "яинещорп ушорп"},
		newTestTokenizer(t, 0),
	)
	require.NoError(t, err)
	return d
}

func TestFromTexts(t *testing.T) {
	d := mockDataset(t)

	assert.Equal(t, []string{"good evening", "речев йырбод", "i am sorry", "яинещорп ушорп"}, d.Texts)
	assert.Equal(t, []float32{LabelHuman, LabelMachine, LabelHuman, LabelMachine}, d.Labels)
	assert.Equal(t, 4, d.Encodings.Len())
	assert.Equal(t, DeviceCPU, d.Device())

	_, err := FromTexts([]string{"a"}, nil, newTestTokenizer(t, 0))
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	d := mockDataset(t)

	train, eval, err := d.Split(DefaultTestSize, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, 1, eval.Len())
	assert.Equal(t, 3, train.Encodings.Len())

	// Every item lands in exactly one split.
	seen := map[string]int{}
	for _, s := range []*Dataset{train, eval} {
		for _, text := range s.Texts {
			seen[text]++
		}
	}
	for _, text := range d.Texts {
		assert.Equal(t, 1, seen[text], text)
	}

	again, _, err := d.Split(DefaultTestSize, 42)
	require.NoError(t, err)
	assert.Equal(t, train.Texts, again.Texts, "same seed, same split")
}

func TestSplit_Invalid(t *testing.T) {
	d := mockDataset(t)
	for _, size := range []float64{0, 1, -0.5} {
		_, _, err := d.Split(size, 1)
		assert.Error(t, err, "test size %v", size)
	}

	single, err := New([]string{"x"}, Encodings{InputIDs: [][]int32{{1}}, AttentionMask: [][]int32{{1}}}, []float32{0})
	require.NoError(t, err)
	_, _, err = single.Split(0.2, 1)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	d := mockDataset(t)
	path := filepath.Join(t.TempDir(), "splits", "mock.train.ru-en.arrow")

	require.NoError(t, d.Save(path))
	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, d.Texts, got.Texts)
	assert.Equal(t, d.Labels, got.Labels)
	if diff := cmp.Diff(d.Encodings, got.Encodings); diff != "" {
		t.Errorf("Encodings mismatch (-want +got):\n%s", diff)
	}
}

type recordingPlacer struct {
	devices []string
	err     error
}

func (p *recordingPlacer) Place(device string, enc Encodings, labels []float32) error {
	p.devices = append(p.devices, device)
	return p.err
}

func TestPlace(t *testing.T) {
	d := mockDataset(t)

	require.NoError(t, d.Place(""))
	require.NoError(t, d.Place(DeviceCPU))
	err := d.Place("cuda:0")
	assert.ErrorIs(t, err, ErrPlacementUnsupported)
	assert.Equal(t, DeviceCPU, d.Device())

	p := &recordingPlacer{}
	d.SetPlacer(p)
	require.NoError(t, d.Place("cuda:0"))
	assert.Equal(t, "cuda:0", d.Device())
	assert.Equal(t, []string{"cuda:0"}, p.devices)

	p.err = errors.New("out of device memory")
	err = d.Place("cuda:1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "out of device memory"))
	assert.Equal(t, "cuda:0", d.Device())
}

func TestComputeMetrics(t *testing.T) {
	tests := []struct {
		name        string
		predictions [][]float64
		labels      []int
		want        ClassificationMetrics
		wantErr     bool
	}{
		{
			name:        "single logit column",
			predictions: [][]float64{{0}, {1}},
			labels:      []int{0, 1},
			want:        ClassificationMetrics{Accuracy: 0.5},
		},
		{
			name:        "perfect",
			predictions: [][]float64{{0.9, 0.1}, {0.2, 0.8}},
			labels:      []int{0, 1},
			want:        ClassificationMetrics{Accuracy: 1, F1: 1, Precision: 1, Recall: 1},
		},
		{
			name:        "one false positive",
			predictions: [][]float64{{0.1, 0.9}, {0.2, 0.8}, {0.7, 0.3}, {0.4, 0.6}},
			labels:      []int{0, 1, 0, 1},
			want:        ClassificationMetrics{Accuracy: 0.75, F1: 0.8, Precision: 2.0 / 3, Recall: 1},
		},
		{
			name:        "length mismatch",
			predictions: [][]float64{{1}},
			labels:      []int{0, 1},
			wantErr:     true,
		},
		{
			name:    "empty",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeMetrics(tt.predictions, tt.labels)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Accuracy, got.Accuracy, 1e-12)
			assert.InDelta(t, tt.want.F1, got.F1, 1e-12)
			assert.InDelta(t, tt.want.Precision, got.Precision, 1e-12)
			assert.InDelta(t, tt.want.Recall, got.Recall, 1e-12)
			assert.Len(t, got.Map(), len(MetricNames))
		})
	}
}
