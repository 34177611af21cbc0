package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hcpextract/internal/pipeline"
	"hcpextract/internal/status"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var filter status.Filter
	var showRecords bool
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded build status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			store, err := status.Open(cmd.Context(), cfg.StorePath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if showRecords {
				records, err := store.Query(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No records")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for i, rec := range records {
					if limit > 0 && i >= limit {
						break
					}
					rows = append(rows, []string{string(rec.Status), rec.PID, rec.Session, rec.Task, rec.Direction, rec.FileKind, rec.Filepath})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "PID", "Session", "Task", "Dir", "Kind", "Path"},
					rows, nil,
				))
				if limit > 0 && len(records) > limit {
					fmt.Fprintf(out, "%d more records not shown\n", len(records)-limit)
				}
				return nil
			}

			summaries, err := store.Summaries(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No records")
				return nil
			}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{orDash(s.Task), orDash(s.DataKind), orDash(s.FileKind), itoa(s.Built), itoa(s.Missing)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Task", "Data kind", "File kind", "Built", "Missing"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.Task, "task", "t", "", "Restrict to one task")
	cmd.Flags().StringVar(&filter.DataKind, "data-kind", "", "Restrict to one data kind")
	cmd.Flags().StringVar(&filter.FileKind, "file-kind", "", "Restrict to cope or varcope")
	cmd.Flags().BoolVar(&showRecords, "records", false, "List individual records instead of counts")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records listed with --records (0 for all)")

	cmd.AddCommand(newStatusRefreshCommand(ctx))
	return cmd
}

func newStatusRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-stat every tracked file and rewrite its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			store, err := status.Open(cmd.Context(), cfg.StorePath())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := pipeline.RefreshLocked(cmd.Context(), store, cfg.LockPath(), logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d records (%d built, %d missing)\n", res.Total(), res.Built, res.Missing)
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
