package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datar-psa/mtdetect/corpus"
	"github.com/datar-psa/mtdetect/gemini"
	"github.com/datar-psa/mtdetect/generate"
	"github.com/datar-psa/mtdetect/internal/logger"
	"github.com/datar-psa/mtdetect/labeled"
)

type generateFlags struct {
	dataset    string
	corpusFile string
	src, trg   string
	size       int
	batchSize  int
	outputDir  string
}

func newGenerateCmd(a *app) *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Translate a parallel corpus with Gemini and build labeled train/eval splits",
		Long: "generate translates the sources of a corpus, writes the parallel text\n" +
			"files and a score-ready table, and saves tokenized human/machine\n" +
			"splits. Without --src/--trg every language pair of the corpus is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, a, f)
		},
	}
	cmd.Flags().StringVarP(&f.dataset, "dataset", "d", corpus.MockName, "corpus name; \"mock\" is built in")
	cmd.Flags().StringVar(&f.corpusFile, "corpus", "", "read the corpus from this TSV file instead of data.dir")
	cmd.Flags().StringVar(&f.src, "src", "", "source language")
	cmd.Flags().StringVar(&f.trg, "trg", "", "target language")
	cmd.Flags().IntVar(&f.size, "size", 0, "use only the first N pairs")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "sources per translation request (default generation.batch_size)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "output directory (default data.output_dir)")
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, f *generateFlags) error {
	ctx := cmd.Context()
	cfg := a.cfg

	if (f.src == "") != (f.trg == "") {
		return errors.New("--src and --trg must be given together")
	}
	src, err := openSource(f, cfg.Data.Dir)
	if err != nil {
		return err
	}
	langs := src.Languages()
	if f.src != "" {
		langs = []corpus.LangPair{{Src: f.src, Trg: f.trg}}
	}

	client, err := newGenaiClient(ctx, cfg.Gemini)
	if err != nil {
		return err
	}
	if client == nil {
		return errors.New("generate needs Gemini: set gemini.api_key or gemini.project")
	}
	llm := gemini.NewGenerator(client, cfg.Gemini.Model)

	tok, err := labeled.NewTiktokenTokenizer(cfg.Generation.Tokenizer, cfg.Generation.MaxLength)
	if err != nil {
		return err
	}

	opts := generate.Options{
		Dataset:     f.dataset,
		Size:        f.size,
		BatchSize:   cfg.Generation.BatchSize,
		LoggingFreq: cfg.Generation.LoggingFreq,
		SavingFreq:  cfg.Generation.SavingFreq,
		OutputDir:   firstNonEmpty(f.outputDir, cfg.Data.OutputDir),
		Ext:         cfg.Data.Ext,
		TestSize:    cfg.Generation.TestSize,
		Seed:        cfg.Generation.Seed,
	}
	if f.batchSize > 0 {
		opts.BatchSize = f.batchSize
	}

	for i, lp := range langs {
		logger.Log.Info("handling dataset", "dataset", f.dataset, "langs", lp.String(), "progress", fmt.Sprintf("%d/%d", i+1, len(langs)))
		tr, err := gemini.NewTranslator(llm, gemini.TranslatorOptions{
			SourceLang:        lp.Src,
			TargetLang:        lp.Trg,
			RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
		})
		if err != nil {
			return err
		}
		p, err := generate.NewPipeline(src, tr, tok, generate.WithLogger(logger.Log))
		if err != nil {
			return err
		}
		o := opts
		o.Langs = lp
		res, err := p.Generate(ctx, o)
		if err != nil {
			return fmt.Errorf("%s: %w", lp, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d labeled texts\n", lp, res.Dataset.Len())
		for _, path := range res.Paths {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
		}
	}
	return nil
}

func openSource(f *generateFlags, dataDir string) (corpus.Source, error) {
	switch {
	case f.dataset == corpus.MockName:
		return corpus.Mock{}, nil
	case f.corpusFile != "":
		if f.src == "" {
			return nil, errors.New("--corpus needs --src and --trg")
		}
		return corpus.NewTSVFile(f.corpusFile, f.dataset, corpus.LangPair{Src: f.src, Trg: f.trg}), nil
	default:
		return corpus.NewTSVSource(dataDir, f.dataset)
	}
}
