package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/datar-psa/mtdetect/internal/logger"
)

// MockName is the name of the built-in two-pair corpus.
const MockName = "mock"

// Source provides the parallel corpora of one named dataset.
type Source interface {
	Name() string
	// Languages lists the available language pairs in a stable order.
	Languages() []LangPair
	// Load returns the corpus for langs.
	Load(ctx context.Context, langs LangPair) (*Dataset, error)
}

// Mock is a two-pair Russian-English corpus for tests and dry runs.
type Mock struct{}

var _ Source = Mock{}

// MockLangs is the language pair of Mock.
var MockLangs = LangPair{Src: "ru", Trg: "en"}

var mockPairs = []Pair{
	{Source: "добрый вечер", Target: "good evening"},
	{Source: "прошу прощения", Target: "i am sorry"},
}

func (Mock) Name() string { return MockName }

func (Mock) Languages() []LangPair { return []LangPair{MockLangs} }

func (Mock) Load(ctx context.Context, langs LangPair) (*Dataset, error) {
	if langs != MockLangs {
		return nil, fmt.Errorf("mock corpus has no %s pair", langs)
	}
	return &Dataset{Name: MockName, Langs: langs, Pairs: append([]Pair(nil), mockPairs...)}, nil
}

// TSVSource reads corpora from tab-separated files named
// name.src-trg.tsv, one "source<TAB>target" pair per line.
type TSVSource struct {
	name  string
	files map[LangPair]string
	langs []LangPair
}

var _ Source = (*TSVSource)(nil)

// NewTSVSource discovers every name.src-trg.tsv file in dir.
func NewTSVSource(dir, name string) (*TSVSource, error) {
	matches, err := filepath.Glob(filepath.Join(dir, name+".*.tsv"))
	if err != nil {
		return nil, err
	}
	s := &TSVSource{name: name, files: make(map[LangPair]string)}
	for _, m := range matches {
		middle := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), name+"."), ".tsv")
		langs, err := ParseLangPair(middle)
		if err != nil {
			continue
		}
		s.files[langs] = m
		s.langs = append(s.langs, langs)
	}
	if len(s.langs) == 0 {
		return nil, fmt.Errorf("no %s.src-trg.tsv files in %s", name, dir)
	}
	sort.Slice(s.langs, func(i, j int) bool { return s.langs[i].String() < s.langs[j].String() })
	return s, nil
}

// NewTSVFile reads a single corpus file for langs.
func NewTSVFile(path, name string, langs LangPair) *TSVSource {
	return &TSVSource{
		name:  name,
		files: map[LangPair]string{langs: path},
		langs: []LangPair{langs},
	}
}

func (s *TSVSource) Name() string { return s.name }

func (s *TSVSource) Languages() []LangPair { return append([]LangPair(nil), s.langs...) }

func (s *TSVSource) Load(ctx context.Context, langs LangPair) (*Dataset, error) {
	path, ok := s.files[langs]
	if !ok {
		return nil, fmt.Errorf("corpus %s has no %s pair", s.name, langs)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	pairs, err := ReadTSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Dataset{Name: s.name, Langs: langs, Pairs: pairs}, nil
}

// ReadTSV parses "source<TAB>target" lines. Extra columns (such as
// sentence IDs after the pair) are ignored.
func ReadTSV(ctx context.Context, r io.Reader) ([]Pair, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var pairs []Pair
	for {
		if len(pairs)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return pairs, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: want source and target, got %d fields", line, len(rec))
		}
		pairs = append(pairs, Pair{Source: rec[0], Target: rec[1]})
	}
}

// CollectOptions configures Collect.
type CollectOptions struct {
	// Dir holds cached corpus artifacts
	Dir string
	// Save writes corpora loaded from the source to Dir
	Save bool
	// Size keeps only the first Size pairs of each corpus (0 keeps all)
	Size int
	// Ext is the artifact extension (default "arrow")
	Ext string
	Log *logger.Logger
}

// Collect returns the corpus of every language pair of src, preferring
// cached artifacts in opts.Dir.
func Collect(ctx context.Context, src Source, opts CollectOptions) ([]*Dataset, error) {
	log := opts.Log
	if log == nil {
		log = logger.Log
	}
	langs := src.Languages()
	out := make([]*Dataset, 0, len(langs))
	for i, lp := range langs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := collectOne(ctx, src, lp, opts)
		if err != nil {
			return nil, err
		}
		d = d.Head(opts.Size)
		log.Info("collected corpus", "dataset", src.Name(), "langs", lp.String(), "pairs", d.Len(),
			"progress", fmt.Sprintf("%d/%d", i+1, len(langs)))
		out = append(out, d)
	}
	return out, nil
}

func collectOne(ctx context.Context, src Source, lp LangPair, opts CollectOptions) (*Dataset, error) {
	if opts.Dir != "" {
		d, err := Load(opts.Dir, src.Name(), lp, opts.Ext)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	d, err := src.Load(ctx, lp)
	if err != nil {
		return nil, err
	}
	if opts.Save && opts.Dir != "" {
		if _, err := Save(opts.Dir, d, opts.Ext); err != nil {
			return nil, err
		}
	}
	return d, nil
}
