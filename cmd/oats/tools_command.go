package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"oats/internal/preflight"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show encoder availability and preflight results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colors := newPalette(out)

			reg := newRegistry(cfg)
			rows := [][]string{}
			for _, status := range reg.Tools() {
				state := colors.status(true, "available")
				detail := status.Path
				switch {
				case status.Disabled:
					state = colors.warn.Sprint("disabled")
					detail = ""
				case !status.Available:
					state = colors.status(false, "missing")
					detail = status.Detail
				}
				rows = append(rows, []string{
					status.Tool.ID,
					status.Tool.Kind.String(),
					strconv.Itoa(status.Priority),
					state,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable("Encoders", []string{"Tool", "Kind", "Priority", "Status", "Path"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))

			helpers := [][]string{}
			for _, status := range preflight.CheckSystemDeps(cfg) {
				state := colors.status(true, "available")
				detail := status.Path
				if !status.Available {
					state = colors.warn.Sprint("missing")
					if !status.Optional {
						state = colors.status(false, "missing")
					}
					detail = status.Detail
				}
				helpers = append(helpers, []string{status.Name, yesNo(status.Optional), state, detail})
			}
			fmt.Fprintln(out, renderTable("Helpers", []string{"Name", "Optional", "Status", "Detail"}, helpers, nil))

			checks := [][]string{}
			for _, result := range preflight.RunAll(cfg) {
				state := colors.status(true, "ok")
				if !result.Passed {
					state = colors.status(false, "fail")
					if result.Advisory {
						state = colors.warn.Sprint("warn")
					}
				}
				checks = append(checks, []string{result.Name, state, result.Detail})
			}
			fmt.Fprintln(out, renderTable("Preflight", []string{"Check", "Status", "Detail"}, checks, nil))
			return nil
		},
	}
}
