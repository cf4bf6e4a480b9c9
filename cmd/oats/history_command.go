package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"oats/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batches, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No batches recorded")
				return nil
			}
			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					b.ShortID(),
					string(b.Status),
					humanize.Time(b.StartedAt),
					formatElapsed(b.Elapsed()),
					strconv.Itoa(b.Succeeded),
					strconv.Itoa(b.Failed),
					strconv.Itoa(b.Torrents),
					strings.Join(b.Formats, ", "),
				})
			}
			fmt.Fprintln(out, renderTable("", []string{"ID", "Status", "Started", "Elapsed", "OK", "Failed", "Torrents", "Formats"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show")
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	return historyCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show the jobs of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batch, err := store.FindBatch(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, history.ErrBatchNotFound) {
					return fmt.Errorf("no batch matches %q", args[0])
				}
				return err
			}
			jobs, err := store.Jobs(cmd.Context(), batch.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := [][]string{
				{"ID", batch.ID},
				{"Status", string(batch.Status)},
				{"Started", batch.StartedAt.Local().Format(time.DateTime)},
				{"Elapsed", formatElapsed(batch.Elapsed())},
				{"Targets", strings.Join(batch.Targets, "\n")},
				{"Formats", strings.Join(batch.Formats, ", ")},
				{"Output", batch.OutputDir},
			}
			if batch.Error != "" {
				summary = append(summary, []string{"Error", batch.Error})
			}
			fmt.Fprintln(out, renderTable("", []string{"Field", "Value"}, summary, nil))

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				detail := job.Reason
				if job.Error != "" {
					detail = job.Error
				}
				if job.ExitCode != nil {
					detail = fmt.Sprintf("%s (exit %d)", detail, *job.ExitCode)
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.JobID, 10),
					job.Format,
					job.Tool,
					job.Status,
					formatElapsed(job.Elapsed),
					job.Source,
					strings.TrimSpace(detail),
				})
			}
			fmt.Fprintln(out, renderTable("Jobs", []string{"#", "Format", "Tool", "Status", "Elapsed", "Source", "Detail"}, rows,
				[]columnAlignment{alignRight}))
			return nil
		},
	}
}

func openHistoryStore(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("history is disabled (history.enabled = false)")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return history.Open(cfg)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}
