package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"hcpextract/internal/config"
	"hcpextract/internal/inspect"
	"hcpextract/internal/pathmeta"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var task, dataKind, file string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a combined Parquet output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(file)
			if path == "" {
				task = strings.TrimSpace(task)
				if task == "" {
					return errors.New("either --file or --task is required")
				}
				if err := config.ValidateTask(task); err != nil {
					return err
				}
				if dataKind == "" {
					dataKind = pathmeta.DataKindFromStatsDir(cfg.Extract.StatsDir)
				}
				path = cfg.CombineOutputPath(task, dataKind)
			}

			report, err := inspect.Inspect(cmd.Context(), path, logger)
			if err != nil {
				return err
			}
			ov := report.Overview
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPairs([][2]string{
				{"File", ov.Path},
				{"Rows", strconv.FormatInt(ov.Rows, 10)},
				{"Sessions", strconv.FormatInt(ov.Sessions, 10)},
				{"Contrasts", strconv.FormatInt(ov.Contrasts, 10)},
				{"Min value", formatNullFloat(ov.MinValue)},
				{"Max value", formatNullFloat(ov.MaxValue)},
			}))
			if len(report.Contrasts) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(report.Contrasts))
			for _, st := range report.Contrasts {
				rows = append(rows, []string{
					st.Contrast,
					st.Direction,
					strconv.FormatInt(st.Rows, 10),
					strconv.FormatInt(st.Sessions, 10),
					formatNullFloat(st.Mean),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Contrast", "Direction", "Rows", "Sessions", "Mean"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "First-level model whose combined output to inspect")
	cmd.Flags().StringVar(&dataKind, "data-kind", "", "Data kind of the combined output (defaults from extract.stats_dir)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Parquet file to inspect")
	return cmd
}

func formatNullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.Float64, 'g', 6, 64)
}
