package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datar-psa/mtdetect/store"
)

func newRunsCmd(a *app) *cobra.Command {
	var storePath string
	var limit int

	open := func() (*store.SQLStore, error) {
		path := firstNonEmpty(storePath, a.cfg.Store.Path)
		if path == "" {
			return nil, errors.New("no run store: pass --store or set store.path")
		}
		return store.Open(path)
	}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored scoring runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tCreated\tInput\tRows\tMetrics\tOmitted\n")
			fmt.Fprintf(w, "--\t-------\t-----\t----\t-------\t-------\n")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\n",
					r.ID,
					r.CreatedAt.Format("2006-01-02 15:04:05"),
					r.Input,
					r.Rows,
					strings.Join(r.Metrics, ","),
					len(r.Omitted),
				)
			}
			return w.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", "", "SQLite run store (default store.path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most N runs (0 for all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the aggregate results of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			r, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:     %s\nInput:   %s\nRows:    %d\nCreated: %s\n\n",
				r.ID, r.Input, r.Rows, r.CreatedAt.Format("2006-01-02 15:04:05"))
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Metric\tMean\n")
			for _, m := range r.Metrics {
				fmt.Fprintf(w, "%s\t%s\n", m, formatMean(r.Means[m]))
			}
			for _, m := range slices.Sorted(maps.Keys(r.Omitted)) {
				fmt.Fprintf(w, "%s\tomitted: %s\n", m, r.Omitted[m])
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(show)
	return cmd
}
