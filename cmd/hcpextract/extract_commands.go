package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hcpextract/internal/pipeline"
	"hcpextract/internal/preflight"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		task          string
		lists         []string
		arrayJob      bool
		force         bool
		refresh       bool
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Convert unbuilt contrast files to text",
		Long: "Reads the WorkItem lists for a task, converts every cope/varcope file whose\n" +
			"text output is not recorded as built, and records produced files in the\n" +
			"status store. With --array-job only the WorkItem at the scheduler index runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			if !skipPreflight {
				if err := cfg.EnsureDirectories(); err != nil {
					return err
				}
				if err := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); err != nil {
					return err
				}
			}

			summary, err := pipeline.RunExtraction(cmd.Context(), cfg, pipeline.ExtractOptions{
				Task:     strings.TrimSpace(task),
				Lists:    lists,
				ArrayJob: arrayJob,
				Force:    force,
				Refresh:  refresh,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			pairs := [][2]string{
				{"Run", summary.RunID},
				{"Work items", itoa(summary.WorkItems)},
				{"Partitions", itoa(summary.Partitions)},
				{"Candidates", itoa(summary.Extract.Candidates)},
				{"Converted", itoa(summary.Extract.Converted)},
				{"Already built", itoa(summary.Extract.Skipped)},
				{"Failed", itoa(summary.Extract.Failed)},
				{"Skipped items", itoa(summary.Extract.SkippedItems)},
				{"Missing directories", itoa(summary.Extract.MissingDirs)},
				{"Commits", itoa(summary.Writer.Batches)},
			}
			if summary.Completeness != nil {
				pairs = append(pairs, [2]string{"Sessions recorded", fmt.Sprintf("%d / %d", summary.Completeness.Sessions, summary.Completeness.Expected)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPairs(pairs))
			if summary.Extract.Failed > 0 {
				return fmt.Errorf("%d conversions failed; rerun extract to retry", summary.Extract.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "First-level model (CARIT-PREPOT, CARIT-PREVCOND, GUESSING)")
	cmd.Flags().StringSliceVarP(&lists, "list", "l", nil, "WorkItem list file (repeatable; defaults to the task lists in paths.list_dir)")
	cmd.Flags().BoolVar(&arrayJob, "array-job", false, "Process only the WorkItem at the scheduler array index")
	cmd.Flags().BoolVar(&force, "force", false, "Convert every candidate regardless of recorded status")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-stat tracked files before extracting")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and binary checks")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newCombineCommand(ctx *commandContext) *cobra.Command {
	var task, dataKind, fileKind, output string

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Write all built text files of a task into one Parquet file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			res, err := pipeline.RunCombine(cmd.Context(), cfg, pipeline.CombineOptions{
				Task:     strings.TrimSpace(task),
				DataKind: dataKind,
				FileKind: fileKind,
				Output:   output,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPairs([][2]string{
				{"Output", res.OutputPath},
				{"Files", itoa(res.Files)},
				{"Rows", itoa(res.Rows)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "First-level model")
	cmd.Flags().StringVar(&dataKind, "data-kind", "", "Data kind to combine (defaults to the kind of extract.stats_dir)")
	cmd.Flags().StringVar(&fileKind, "file-kind", "", "Restrict to cope or varcope files")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output Parquet path")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}
