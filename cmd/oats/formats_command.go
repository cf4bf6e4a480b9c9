package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"oats/internal/format"
)

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the formats this host can produce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog := format.BuildCatalog(newRegistry(cfg))
			out := cmd.OutOrStdout()
			if len(catalog) == 0 {
				fmt.Fprintln(out, "No encoders available; run 'oats tools' for details.")
				return nil
			}
			if !verbose {
				fmt.Fprint(out, catalog.String())
				return nil
			}
			rows := make([][]string, 0, len(catalog))
			for _, entry := range catalog {
				rows = append(rows, []string{
					string(entry.Codec),
					string(entry.Mode),
					entry.Notation(),
					strings.Join(entry.Tools, ", "),
					entry.Example(),
				})
			}
			fmt.Fprintln(out, renderTable("Available formats", []string{"Codec", "Mode", "Parameter", "Tools", "Example"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show tools and examples per format")
	return cmd
}
