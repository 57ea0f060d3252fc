// Package corpus provides parallel corpora: aligned (source, target)
// sentence pairs for one language pair, their on-disk layout and the
// sources they are collected from.
package corpus

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/datar-psa/mtdetect/table"
)

// DefaultExt is the artifact extension used when none is given.
const DefaultExt = "arrow"

// LangPair is a translation direction.
type LangPair struct {
	Src string
	Trg string
}

func (l LangPair) String() string { return l.Src + "-" + l.Trg }

// ParseLangPair parses "src-trg".
func ParseLangPair(s string) (LangPair, error) {
	src, trg, ok := strings.Cut(s, "-")
	if !ok || src == "" || trg == "" || strings.Contains(trg, "-") {
		return LangPair{}, fmt.Errorf("language pair %q is not of the form src-trg", s)
	}
	if src == trg {
		return LangPair{}, fmt.Errorf("language pair %q translates into itself", s)
	}
	return LangPair{Src: src, Trg: trg}, nil
}

// Pair is one aligned sentence pair.
type Pair struct {
	Source string
	Target string
}

// Dataset is a named parallel corpus for one language pair.
type Dataset struct {
	Name  string
	Langs LangPair
	Pairs []Pair
}

// Len returns the number of pairs.
func (d *Dataset) Len() int { return len(d.Pairs) }

// Sources returns the source sentences in order.
func (d *Dataset) Sources() []string {
	out := make([]string, len(d.Pairs))
	for i, p := range d.Pairs {
		out[i] = p.Source
	}
	return out
}

// Targets returns the gold target sentences in order.
func (d *Dataset) Targets() []string {
	out := make([]string, len(d.Pairs))
	for i, p := range d.Pairs {
		out[i] = p.Target
	}
	return out
}

// Head returns a dataset with the first size pairs. A size of zero or
// more than Len keeps every pair.
func (d *Dataset) Head(size int) *Dataset {
	if size <= 0 || size >= len(d.Pairs) {
		return d
	}
	return &Dataset{Name: d.Name, Langs: d.Langs, Pairs: d.Pairs[:size]}
}

// Frame returns the dataset as a table with one column per language.
func (d *Dataset) Frame() *table.Frame {
	src := d.Sources()
	trg := d.Targets()
	f, _ := table.FromColumns([]string{d.Langs.Src, d.Langs.Trg}, map[string][]string{
		d.Langs.Src: src,
		d.Langs.Trg: trg,
	})
	return f
}

// FromFrame reads a dataset from a table with src and trg columns.
func FromFrame(name string, langs LangPair, f *table.Frame) (*Dataset, error) {
	if err := f.Require(langs.Src, langs.Trg); err != nil {
		return nil, err
	}
	d := &Dataset{Name: name, Langs: langs, Pairs: make([]Pair, f.Len())}
	for i := range d.Pairs {
		d.Pairs[i] = Pair{Source: f.Value(langs.Src, i), Target: f.Value(langs.Trg, i)}
	}
	return d, nil
}

// Path is the artifact location of a corpus: dir/name.src-trg.ext.
func Path(dir, name string, langs LangPair, ext string) string {
	if ext == "" {
		ext = DefaultExt
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", name, langs, strings.TrimPrefix(ext, ".")))
}

// SplitPath is the location of one split of a dataset:
// dir/name.split.src-trg.ext.
func SplitPath(dir, name, split string, langs LangPair, ext string) string {
	return Path(dir, name+"."+split, langs, ext)
}

// Save writes d to Path(dir, d.Name, d.Langs, ext) and returns the path.
func Save(dir string, d *Dataset, ext string) (string, error) {
	path := Path(dir, d.Name, d.Langs, ext)
	if err := table.Save(path, d.Frame()); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads the dataset stored at Path(dir, name, langs, ext).
func Load(dir, name string, langs LangPair, ext string) (*Dataset, error) {
	f, err := table.Load(Path(dir, name, langs, ext))
	if err != nil {
		return nil, err
	}
	return FromFrame(name, langs, f)
}
