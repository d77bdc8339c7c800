package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
)

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the metric catalog",
		Long: `Print both metric tables with their provenance. Extension entries that
reuse a general table name are marked as shadowed; lookups by that name
resolve to the general entry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCatalog(cmd.OutOrStdout(), catalog.Default())
		},
	}
}

func printCatalog(out io.Writer, cat *catalog.Catalog) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tTYPE\tUNIT\tLEVELS\tLABELS\tSOURCE\tWINDOW\tSUPPORTED\tPROVENANCE")

	for _, defs := range [][]catalog.Definition{cat.General(), cat.Extension()} {
		for _, d := range defs {
			provenance := d.Provenance.String()
			if d.Provenance == catalog.ProvenanceExtension && cat.Shadowed(d.Name) {
				provenance += " (shadowed)"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
				d.Name,
				d.DataType,
				unit(d.Unit),
				d.Levels,
				labels(d.Labels),
				d.Source,
				d.Window,
				d.Supported,
				provenance,
			)
		}
	}

	return w.Flush()
}

func unit(u string) string {
	if u == "" {
		return "-"
	}

	return u
}

func labels(set catalog.Labels) string {
	list := set.List()
	names := make([]string, 0, len(list))

	for _, l := range list {
		names = append(names, l.String())
	}

	return strings.Join(names, ",")
}
