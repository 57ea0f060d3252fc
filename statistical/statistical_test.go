package statistical

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/metric"
	"github.com/datar-psa/mtdetect/table"
)

func mockFrame() *table.Frame {
	return table.FromRecords([]table.Record{
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

func assertScores(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d scores, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("row %d = %.4f, want %.4f", i, got[i], want[i])
		}
	}
}

func TestMetrics_MockDataset(t *testing.T) {
	ctx := context.Background()

	bleu, err := NewBLEU(BLEUOptions{})
	if err != nil {
		t.Fatal(err)
	}
	meteor, err := NewMETEOR(METEOROptions{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		metric api.Metric
		want   []float64
	}{
		{name: "BLEU", metric: bleu, want: []float64{75.062, 6.567}},
		{name: "METEOR", metric: meteor, want: []float64{0.882, 0.096}},
		{name: "TER", metric: NewTER(TEROptions{}), want: []float64{14.286, 150.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", tt.metric.Name(), tt.name)
			}
			got, err := tt.metric.Compute(ctx, mockFrame())
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			assertScores(t, got, tt.want, 0.01)
		})
	}
}

func TestBLEU_Sentence(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		opts      BLEUOptions
		output    string
		expected  string
		wantScore float64
		wantErr   error
	}{
		{
			name:      "identical",
			output:    "the cat sat on the mat",
			expected:  "the cat sat on the mat",
			wantScore: 100,
		},
		{
			name:      "empty reference",
			output:    "the cat",
			expected:  "",
			wantScore: 0,
		},
		{
			name:      "empty hypothesis",
			output:    "",
			expected:  "the cat",
			wantScore: 0,
		},
		{
			name:      "case sensitive by default",
			opts:      BLEUOptions{Smooth: SmoothNone},
			output:    "THE CAT",
			expected:  "the cat",
			wantScore: 0,
		},
		{
			name:      "lowercase",
			opts:      BLEUOptions{Lowercase: true},
			output:    "THE CAT",
			expected:  "the cat",
			wantScore: 100,
		},
		{
			name:      "no smoothing zeroes missing orders",
			opts:      BLEUOptions{Smooth: SmoothNone},
			output:    "a b c d",
			expected:  "a b x d",
			wantScore: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBLEU(tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			got := b.Score(ctx, api.ScoreInputs{Output: tt.output, Expected: tt.expected})
			if tt.wantErr != nil {
				if !errors.Is(got.Error, tt.wantErr) {
					t.Errorf("Score() error = %v, want %v", got.Error, tt.wantErr)
				}
				return
			}
			if got.Error != nil {
				t.Fatalf("Score() unexpected error = %v", got.Error)
			}
			if math.Abs(got.Score-tt.wantScore) > 1e-6 {
				t.Errorf("Score() = %v, want %v", got.Score, tt.wantScore)
			}
		})
	}
}

func TestBLEU_CorpusLevel(t *testing.T) {
	b, err := NewBLEU(BLEUOptions{CorpusLevel: true})
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.Compute(context.Background(), mockFrame())
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != got[1] {
		t.Errorf("corpus level rows differ: %v", got)
	}
	if got[0] <= 0 || got[0] >= 100 {
		t.Errorf("corpus BLEU = %v, want in (0,100)", got[0])
	}
}

func TestNewBLEU_InvalidOptions(t *testing.T) {
	for _, opts := range []BLEUOptions{
		{Tokenize: "intl"},
		{Smooth: "laplace"},
		{MaxOrder: -1},
		{Smooth: SmoothFloor, SmoothValue: -1},
	} {
		if _, err := NewBLEU(opts); err == nil {
			t.Errorf("NewBLEU(%+v) expected error", opts)
		}
	}
}

func TestTokenize13a(t *testing.T) {
	got := strings.Join(tokenize13a("Он едет в библиотеку, чтобы читать книги."), " ")
	want := "Он едет в библиотеку , чтобы читать книги ."
	if got != want {
		t.Errorf("tokenize13a() = %q, want %q", got, want)
	}
	got = strings.Join(tokenize13a("It costs 3.50 &amp; 1,000-2"), " ")
	want = "It costs 3.50 & 1,000 - 2"
	if got != want {
		t.Errorf("tokenize13a() = %q, want %q", got, want)
	}
}

func TestWordTokenize(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "Он едет в библиотеку, чтобы читать книги.", want: "Он едет в библиотеку , чтобы читать книги ."},
		{text: "I can't go. He's (not) here!", want: "I ca n't go . He 's ( not ) here !"},
		{text: "", want: ""},
	}
	for _, tt := range tests {
		got := strings.Join(WordTokenize(tt.text), " ")
		if got != tt.want {
			t.Errorf("WordTokenize(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

type fakeSynonyms map[string][]string

func (f fakeSynonyms) Synonyms(ctx context.Context, word string) ([]string, error) {
	return f[word], nil
}

type failingStemmer struct{}

func (failingStemmer) Stem(ctx context.Context, words []string) ([]string, error) {
	return nil, errors.New("stemmer offline")
}

func TestMETEOR_Stages(t *testing.T) {
	ctx := context.Background()

	plain, err := NewMETEOR(METEOROptions{})
	if err != nil {
		t.Fatal(err)
	}
	withSyns, err := NewMETEOR(METEOROptions{Synonyms: fakeSynonyms{"quick": {"fast", "rapid_fire"}}})
	if err != nil {
		t.Fatal(err)
	}

	identical := plain.Score(ctx, api.ScoreInputs{Output: "the cat sat", Expected: "the cat sat"})
	if identical.Error != nil {
		t.Fatal(identical.Error)
	}
	// One chunk over three matches: (1 - 0.5 * (1/3)^3) = 0.98148
	if math.Abs(identical.Score-0.98148) > 1e-4 {
		t.Errorf("identical = %v, want 0.98148", identical.Score)
	}

	stemmed := plain.Score(ctx, api.ScoreInputs{Output: "the cats running", Expected: "the cat runs"})
	// cats/cat and running/runs share stems
	if got := stemmed.Metadata["matches"]; got != 3 {
		t.Errorf("stem matches = %v, want 3", got)
	}

	syn := withSyns.Score(ctx, api.ScoreInputs{Output: "a quick dog", Expected: "a fast dog"})
	if got := syn.Metadata["matches"]; got != 3 {
		t.Errorf("synonym matches = %v, want 3", got)
	}
	noSyn := plain.Score(ctx, api.ScoreInputs{Output: "a quick dog", Expected: "a fast dog"})
	if syn.Score <= noSyn.Score {
		t.Errorf("synonym stage did not raise score: %v <= %v", syn.Score, noSyn.Score)
	}
}

func TestMETEOR_StemmerError(t *testing.T) {
	m, err := NewMETEOR(METEOROptions{Stemmer: failingStemmer{}})
	if err != nil {
		t.Fatal(err)
	}
	scores, err := m.Compute(context.Background(), mockFrame())
	var rowErrs *metric.RowErrors
	if !errors.As(err, &rowErrs) {
		t.Fatalf("Compute() error = %v, want *metric.RowErrors", err)
	}
	if len(scores) != 2 || !math.IsNaN(scores[0]) || !math.IsNaN(scores[1]) {
		t.Errorf("Compute() = %v, want two NaN", scores)
	}
}

func TestCountChunks(t *testing.T) {
	tests := []struct {
		matches []wordMatch
		want    int
	}{
		{matches: []wordMatch{{0, 0}}, want: 1},
		{matches: []wordMatch{{0, 0}, {1, 1}, {2, 2}}, want: 1},
		{matches: []wordMatch{{0, 0}, {2, 2}, {3, 3}}, want: 2},
		{matches: []wordMatch{{0, 2}, {1, 0}}, want: 2},
	}
	for _, tt := range tests {
		if got := countChunks(tt.matches); got != tt.want {
			t.Errorf("countChunks(%v) = %d, want %d", tt.matches, got, tt.want)
		}
	}
}

func TestTER_Edits(t *testing.T) {
	tests := []struct {
		name string
		hyp  string
		ref  string
		want float64
	}{
		{name: "identical", hyp: "a b c d", ref: "a b c d", want: 0},
		{name: "one substitution", hyp: "a b x d", ref: "a b c d", want: 25},
		{name: "block shift counts once", hyp: "c d a b", ref: "a b c d", want: 25},
		{name: "empty hypothesis", hyp: "", ref: "a b", want: 100},
		{name: "case insensitive", hyp: "A B", ref: "a b", want: 0},
	}
	ter := NewTER(TEROptions{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ter.Score(context.Background(), api.ScoreInputs{Output: tt.hyp, Expected: tt.ref})
			if got.Error != nil {
				t.Fatal(got.Error)
			}
			if math.Abs(got.Score-tt.want) > 1e-9 {
				t.Errorf("TER = %v, want %v", got.Score, tt.want)
			}
		})
	}
}

func TestTER_EmptyReference(t *testing.T) {
	ctx := context.Background()
	ter := NewTER(TEROptions{})

	tests := []struct {
		name string
		hyp  string
		ref  string
		want float64
	}{
		{name: "edits against empty", hyp: "a b", ref: "", want: 100},
		{name: "edits against blank", hyp: "a b", ref: "   ", want: 100},
		{name: "both empty", hyp: "", ref: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ter.Score(ctx, api.ScoreInputs{Output: tt.hyp, Expected: tt.ref})
			if got.Error != nil {
				t.Fatalf("Score() unexpected error = %v", got.Error)
			}
			if got.Score != tt.want {
				t.Errorf("TER = %v, want %v", got.Score, tt.want)
			}
		})
	}

	frame := table.FromRecords([]table.Record{
		{Source: "x", Translation: "a b", Target: ""},
		{Source: "y", Translation: "", Target: ""},
		{Source: "z", Translation: "a b", Target: "a b"},
	})
	scores, err := ter.Compute(ctx, frame)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	assertScores(t, scores, []float64{100, 0, 0}, 1e-9)
}

func TestEmptyReference_NoRowErrors(t *testing.T) {
	ctx := context.Background()
	frame := table.FromRecords([]table.Record{
		{Source: "x", Translation: "the cat", Target: ""},
		{Source: "y", Translation: "the cat", Target: "the cat"},
	})
	bleu, err := NewBLEU(BLEUOptions{})
	if err != nil {
		t.Fatal(err)
	}
	meteor, err := NewMETEOR(METEOROptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range []api.Metric{bleu, meteor} {
		scores, err := m.Compute(ctx, frame)
		if err != nil {
			t.Fatalf("%s Compute() error = %v", m.Name(), err)
		}
		if scores[0] != 0 {
			t.Errorf("%s empty reference = %v, want 0", m.Name(), scores[0])
		}
		if scores[1] <= 0 {
			t.Errorf("%s identical row = %v, want > 0", m.Name(), scores[1])
		}
	}
}

func TestPerformShift(t *testing.T) {
	words := []string{"a", "b", "c", "d", "e"}
	got := strings.Join(performShift(words, 3, 2, 0), " ")
	if got != "d e a b c" {
		t.Errorf("performShift left = %q", got)
	}
	got = strings.Join(performShift(words, 0, 2, 5), " ")
	if got != "c d e a b" {
		t.Errorf("performShift right = %q", got)
	}
}
