package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/datar-psa/mtdetect/calculator"
	"github.com/datar-psa/mtdetect/internal/logger"
	"github.com/datar-psa/mtdetect/store"
	"github.com/datar-psa/mtdetect/table"
)

type scoreFlags struct {
	input       string
	metrics     []string
	output      string
	format      string
	storePath   string
	metricsFile string
	language    string
}

func newScoreCmd(a *app) *cobra.Command {
	f := &scoreFlags{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute metrics over a sources/translations/targets table",
		Example: "  mtdetect score --input data/mock.csv --metrics BLEU,METEOR,TER\n" +
			"  mtdetect score --input gen.arrow --metrics BERTScore --config mtdetect.yaml --output scores.arrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, a, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "input table (.csv, .tsv or .arrow)")
	cmd.Flags().StringSliceVarP(&f.metrics, "metrics", "m", nil, "metrics to compute, comma separated")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the score table here")
	cmd.Flags().StringVar(&f.format, "format", "", "output format when --output has no extension: csv, tsv or arrow")
	cmd.Flags().StringVar(&f.storePath, "store", "", "SQLite run store (default store.path)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics here (default metrics.textfile_path)")
	cmd.Flags().StringVar(&f.language, "language", "", "language hint for the METEOR lemmatizer")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("metrics")
	return cmd
}

func runScore(cmd *cobra.Command, a *app, f *scoreFlags) error {
	ctx := cmd.Context()
	cfg := a.cfg

	output, err := outputPath(f.output, f.format)
	if err != nil {
		return err
	}

	frame, err := table.Load(f.input)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	opts := []calculator.Option{
		calculator.WithLogger(logger.Log),
		calculator.WithMinValidFraction(cfg.Calculator.MinValidFraction),
		calculator.WithMetrics(calculator.NewMetrics(reg)),
	}
	client, err := newGenaiClient(ctx, cfg.Gemini)
	if err != nil {
		return err
	}
	if client != nil {
		opts = append(opts, calculator.WithGenaiClient(client))
	}
	lemmatizer, closeLemmatizer, err := newLemmatizer(ctx, cfg.Gemini, f.language)
	if err != nil {
		return err
	}
	defer closeLemmatizer()
	if lemmatizer != nil {
		opts = append(opts, calculator.WithStemmer(lemmatizer))
	}

	calc, err := calculator.New(frame, cfg.Calculator.Models, opts...)
	if err != nil {
		return err
	}
	defer calc.Close()

	scores, err := calc.Compute(ctx, f.metrics)
	if err != nil {
		return err
	}
	printSummary(cmd, scores)

	if output != "" {
		if err := scores.Save(output); err != nil {
			return err
		}
		logger.Log.Info("saved score table", "path", output)
	}

	if path := firstNonEmpty(f.storePath, cfg.Store.Path); path != "" {
		s, err := store.Open(path)
		if err != nil {
			return err
		}
		defer s.Close()
		id, err := s.SaveRun(ctx, store.NewRun(f.input, scores))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nRun: %s\n", id)
	}

	if path := firstNonEmpty(f.metricsFile, cfg.Metrics.TextfilePath); path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			return fmt.Errorf("write metrics file: %w", err)
		}
	}
	return nil
}

// outputPath appends the --format extension to an output path without one.
func outputPath(output, format string) (string, error) {
	if output == "" || format == "" {
		return output, nil
	}
	format = strings.ToLower(format)
	switch table.Format(format) {
	case table.FormatCSV, table.FormatTSV, table.FormatArrow:
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	switch ext {
	case "":
		return output + "." + format, nil
	case format:
		return output, nil
	default:
		return "", fmt.Errorf("--format %s conflicts with output extension .%s", format, ext)
	}
}

func printSummary(cmd *cobra.Command, scores *table.ScoreTable) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Metric\tMean\n")
	fmt.Fprintf(w, "------\t----\n")
	for metric, mean := range orderedMeans(scores) {
		fmt.Fprintf(w, "%s\t%s\n", metric, formatMean(mean))
	}
	w.Flush()

	summary := scores.Summary()
	if len(summary.Omitted) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nOmitted:\n")
	for _, name := range summary.OmittedNames() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", name, summary.Omitted[name])
	}
}

// orderedMeans yields the computed metrics in computation order.
func orderedMeans(scores *table.ScoreTable) func(yield func(string, float64) bool) {
	means := scores.Means()
	return func(yield func(string, float64) bool) {
		for _, m := range scores.Metrics() {
			if !yield(m, means[m]) {
				return
			}
		}
	}
}

func formatMean(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.4f", v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
