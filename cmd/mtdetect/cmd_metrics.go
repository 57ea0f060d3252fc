package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datar-psa/mtdetect/calculator"
)

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the registered metrics and their configuration keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := calculator.DefaultRegistry()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Metric\tConfig keys\n")
			fmt.Fprintf(w, "------\t-----------\n")
			for _, name := range reg.Names() {
				f, _ := reg.Lookup(name)
				keys := strings.Join(f.Keys, ", ")
				if keys == "" {
					keys = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", name, keys)
			}
			return w.Flush()
		},
	}
}
