// Package generate produces machine translations of a parallel corpus and
// turns them into the score-ready table and the labeled detection dataset.
package generate

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/corpus"
	"github.com/datar-psa/mtdetect/internal/logger"
	"github.com/datar-psa/mtdetect/labeled"
	"github.com/datar-psa/mtdetect/table"
)

// Defaults of Options.
const (
	DefaultBatchSize   = 32
	DefaultLoggingFreq = 250
	DefaultSavingFreq  = 50000
)

// TranslateDataset translates the sources of d in order.
func TranslateDataset(ctx context.Context, d *corpus.Dataset, tr api.Translator) ([]string, error) {
	sources := d.Sources()
	out, err := tr.Translate(ctx, sources)
	if err != nil {
		return nil, err
	}
	if len(out) != len(sources) {
		return nil, fmt.Errorf("translator returned %d texts for %d sources", len(out), len(sources))
	}
	return out, nil
}

// Options configures one Generate run.
type Options struct {
	// Dataset must name the pipeline's corpus source
	Dataset string
	Langs   corpus.LangPair
	// Size keeps the first Size pairs (0 keeps all)
	Size int
	// BatchSize is the number of sources per Translate call
	BatchSize int
	// LoggingFreq logs a sample every LoggingFreq translated rows
	LoggingFreq int
	// SavingFreq writes a checkpoint every SavingFreq translated rows
	SavingFreq int
	// OutputDir receives the text files, the frame and the splits
	OutputDir string
	// Ext is the extension of the labeled splits (default "arrow")
	Ext string
	// TestSize is the eval share of the labeled dataset (default 0.2)
	TestSize float64
	Seed     uint64
}

func (o *Options) defaults() {
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.LoggingFreq == 0 {
		o.LoggingFreq = DefaultLoggingFreq
	}
	if o.SavingFreq == 0 {
		o.SavingFreq = DefaultSavingFreq
	}
	if o.Ext == "" {
		o.Ext = corpus.DefaultExt
	}
	if o.TestSize == 0 {
		o.TestSize = labeled.DefaultTestSize
	}
}

func (o *Options) validate() error {
	if o.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.LoggingFreq < 1 || o.SavingFreq < 1 {
		return fmt.Errorf("logging and saving frequencies must be positive")
	}
	if o.Size < 0 {
		return fmt.Errorf("size must not be negative, got %d", o.Size)
	}
	return nil
}

// Result is the output of one language pair.
type Result struct {
	Langs corpus.LangPair
	// Frame has the sources, translations and targets columns
	Frame *table.Frame
	// Dataset is the labeled detection dataset before splitting
	Dataset *labeled.Dataset
	// Paths lists every file written
	Paths []string
}

// Pipeline translates corpora from one source.
type Pipeline struct {
	source     corpus.Source
	translator api.Translator
	tokenizer  labeled.Tokenizer
	log        *logger.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline creates a pipeline. The translator must be fixed to the
// language pair that Generate is asked for.
func NewPipeline(src corpus.Source, tr api.Translator, tok labeled.Tokenizer, opts ...PipelineOption) (*Pipeline, error) {
	if src == nil || tr == nil || tok == nil {
		return nil, fmt.Errorf("source, translator and tokenizer are required")
	}
	p := &Pipeline{source: src, translator: tr, tokenizer: tok, log: logger.Log}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate translates the corpus for opts.Langs, writes the parallel text
// files, the score-ready frame and the train/eval splits to opts.OutputDir
// and returns the labeled dataset.
func (p *Pipeline) Generate(ctx context.Context, opts Options) (*Result, error) {
	opts.defaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Dataset != p.source.Name() {
		return nil, fmt.Errorf("wrong dataset name %q: this pipeline generates %q", opts.Dataset, p.source.Name())
	}

	d, err := p.source.Load(ctx, opts.Langs)
	if err != nil {
		return nil, err
	}
	d = d.Head(opts.Size)
	log := p.log.With("dataset", d.Name, "langs", d.Langs.String())
	log.Info("generating translations", "pairs", d.Len(), "batch_size", opts.BatchSize)

	translations, paths, err := p.translate(ctx, d, opts, log)
	if err != nil {
		return nil, err
	}

	res := &Result{Langs: d.Langs, Paths: paths}
	res.Frame = frameOf(d, translations)
	written, err := p.persist(d, res.Frame, opts)
	res.Paths = append(res.Paths, written...)
	if err != nil {
		return nil, err
	}

	res.Dataset, err = labeled.FromTexts(d.Targets(), translations, p.tokenizer)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir != "" && res.Dataset.Len() > 1 {
		train, eval, err := res.Dataset.Split(opts.TestSize, opts.Seed)
		if err != nil {
			return nil, err
		}
		splits := []struct {
			name string
			ds   *labeled.Dataset
		}{{"train", train}, {"eval", eval}}
		for _, split := range splits {
			path := corpus.SplitPath(opts.OutputDir, d.Name, split.name, d.Langs, opts.Ext)
			if err := split.ds.Save(path); err != nil {
				return nil, err
			}
			res.Paths = append(res.Paths, path)
		}
		log.Info("saved labeled splits", "train", train.Len(), "eval", eval.Len())
	}
	return res, nil
}

// GenerateAll runs Generate for every language pair of the source.
func (p *Pipeline) GenerateAll(ctx context.Context, opts Options) ([]*Result, error) {
	langs := p.source.Languages()
	out := make([]*Result, 0, len(langs))
	for i, lp := range langs {
		p.log.Info("handling dataset", "dataset", opts.Dataset, "langs", lp.String(), "progress", fmt.Sprintf("%d/%d", i+1, len(langs)))
		o := opts
		o.Langs = lp
		res, err := p.Generate(ctx, o)
		if err != nil {
			return out, fmt.Errorf("%s: %w", lp, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// translate runs the batches, logging samples and writing checkpoints.
func (p *Pipeline) translate(ctx context.Context, d *corpus.Dataset, opts Options, log *logger.Logger) ([]string, []string, error) {
	sources := d.Sources()
	translations := make([]string, 0, len(sources))
	var checkpoints []string
	for start := 0; start < len(sources); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(sources))
		batch, err := p.translator.Translate(ctx, sources[start:end])
		if err != nil {
			return nil, checkpoints, fmt.Errorf("translate rows %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, checkpoints, fmt.Errorf("translator returned %d texts for %d sources", len(batch), end-start)
		}
		translations = append(translations, batch...)

		for i := start; i < end; i++ {
			if (i+1)%opts.LoggingFreq == 0 {
				log.Info("translated sample",
					"progress", fmt.Sprintf("%d/%d", i+1, len(sources)),
					"source", sources[i],
					"translation", translations[i])
			}
			if (i+1)%opts.SavingFreq == 0 && opts.OutputDir != "" {
				path := corpus.SplitPath(opts.OutputDir, d.Name, "checkpoint", d.Langs, "csv")
				partial := &corpus.Dataset{Name: d.Name, Langs: d.Langs, Pairs: d.Pairs[:i+1]}
				if err := table.Save(path, frameOf(partial, translations[:i+1])); err != nil {
					return nil, checkpoints, fmt.Errorf("checkpoint: %w", err)
				}
				log.Info("saved checkpoint", "progress", fmt.Sprintf("%d/%d", i+1, len(sources)), "path", path)
				if len(checkpoints) == 0 {
					checkpoints = append(checkpoints, path)
				}
			}
		}
	}
	return translations, checkpoints, nil
}

func frameOf(d *corpus.Dataset, translations []string) *table.Frame {
	records := make([]table.Record, len(d.Pairs))
	for i, pair := range d.Pairs {
		records[i] = table.Record{Source: pair.Source, Translation: translations[i], Target: pair.Target}
	}
	return table.FromRecords(records)
}

// persist writes the parallel text files and the score-ready frame.
func (p *Pipeline) persist(d *corpus.Dataset, frame *table.Frame, opts Options) ([]string, error) {
	if opts.OutputDir == "" {
		return nil, nil
	}
	var paths []string
	for _, column := range []string{table.ColumnSources, table.ColumnTargets, table.ColumnTranslations} {
		lines, err := frame.Column(column)
		if err != nil {
			return paths, err
		}
		path := corpus.SplitPath(opts.OutputDir, d.Name, column, d.Langs, "txt")
		if err := writeLines(path, lines); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	path := corpus.SplitPath(opts.OutputDir, d.Name, "generated", d.Langs, "csv")
	if err := table.Save(path, frame); err != nil {
		return paths, err
	}
	return append(paths, path), nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// writeLines writes one text per line; line breaks inside a text become
// spaces so that files stay aligned.
func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		line = lineBreaks.Replace(line)
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
