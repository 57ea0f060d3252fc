// mtdetect scores machine translations against references and generates
// labeled datasets for machine-translation detection.
//
// Usage:
//
//	mtdetect score    --input F --metrics BLEU,TER [--output O] [--store DB] [--metrics-file P]
//	mtdetect generate --dataset mock|<name> [--corpus F.tsv] [--src ru --trg en] [--size N]
//	mtdetect metrics
//	mtdetect runs     [--store DB] [--limit N]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datar-psa/mtdetect/config"
	"github.com/datar-psa/mtdetect/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries state shared by the subcommands.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mtdetect",
		Short: "Machine translation detection: metrics and dataset generation",
		Long: "mtdetect computes lexical, statistical and neural metrics over\n" +
			"(source, translation, target) tables and generates labeled\n" +
			"human/machine datasets from parallel corpora.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			a.cfg = cfg
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newScoreCmd(a))
	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newMetricsCmd(a))
	root.AddCommand(newRunsCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
