package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/plugins"
)

// NewUnitsCmd creates the units command.
func NewUnitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List registered crawl units",
		Long: `List every crawl unit compiled into this binary, with its seed address
and default permit pool size. Unit names are the arguments of "harvester crawl".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listUnits(cmd.OutOrStdout(), plugins.Default())
		},
	}
}

func listUnits(w io.Writer, reg *plugins.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCONCURRENCY\tSTARTING ADDRESS\tDESCRIPTION")
	for _, e := range reg.Entries() {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Name, e.Concurrency, e.StartingAddress, e.Description)
	}
	return tw.Flush()
}
