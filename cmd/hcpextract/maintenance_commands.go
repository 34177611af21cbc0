package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hcpextract/internal/config"
	"hcpextract/internal/discovery"
	"hcpextract/internal/pipeline"
	"hcpextract/internal/worklist"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var task, session string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove first-level model outputs for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			res, err := pipeline.RunClean(cmd.Context(), cfg, pipeline.CleanOptions{
				Task:    strings.TrimSpace(task),
				Session: strings.TrimSpace(session),
				DryRun:  dryRun,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				for _, dir := range res.FeatDirs {
					fmt.Fprintf(out, "would remove %s\n", dir)
				}
				for _, f := range res.ModelFiles {
					fmt.Fprintf(out, "would remove %s\n", f)
				}
			}
			fmt.Fprintln(out, renderPairs([][2]string{
				{"Sessions", itoa(res.Sessions)},
				{"Feat directories", itoa(len(res.FeatDirs))},
				{"Model files", itoa(len(res.ModelFiles))},
				{"Derived files", itoa(len(res.DerivedFiles))},
				{"Failures", itoa(res.Failures)},
				{"Dry run", yesNo(dryRun)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "Model (CARIT-PREPOT) or acquisition (CARIT) to clean")
	cmd.Flags().StringVar(&session, "session", "", "Only clean this session directory (e.g. HCD0001305_V1_MR)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without removing it")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var task string
	var stdout bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Build WorkItem list files from the study tree",
		Long: "Writes one list per run count, <task>-l1-list_<N>run.txt, into paths.list_dir.\n" +
			"Each line holds a session, its scan directories joined with '@', and the\n" +
			"second-level analysis name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			task = strings.TrimSpace(task)
			if err := config.ValidateTask(task); err != nil {
				return err
			}
			items, err := discovery.Scanner{StudyDir: cfg.Paths.StudyDir, Logger: logger}.BuildList(task)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if stdout {
				return worklist.Write(out, items)
			}

			groups := make(map[int][]worklist.Item)
			var runs []int
			for _, item := range items {
				n := strings.Count(item.Label, "@") + 1
				if _, ok := groups[n]; !ok {
					runs = append(runs, n)
				}
				groups[n] = append(groups[n], item)
			}
			if err := os.MkdirAll(cfg.Paths.ListDir, 0o755); err != nil {
				return fmt.Errorf("create list directory: %w", err)
			}
			rows := make([][]string, 0, len(runs))
			for _, n := range runs {
				path := filepath.Join(cfg.Paths.ListDir, fmt.Sprintf("%s-l1-list_%drun.txt", task, n))
				if err := writeList(path, groups[n]); err != nil {
					return err
				}
				rows = append(rows, []string{path, itoa(len(groups[n]))})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No sessions with matching scan directories")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"List", "Work items"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "First-level model")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print a single list to stdout instead of writing files")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func writeList(path string, items []worklist.Item) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create list: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := worklist.Write(w, items); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write list: %w", err)
	}
	return f.Close()
}

func newMissingDtseriesCommand(ctx *commandContext) *cobra.Command {
	var output string
	var subjectsOnly bool

	cmd := &cobra.Command{
		Use:   "missing-dtseries",
		Short: "Report task scans without a cleaned dense timeseries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			missing, err := discovery.Scanner{StudyDir: cfg.Paths.StudyDir, Logger: logger}.MissingDtseries()
			if err != nil {
				return err
			}

			var lines []string
			if subjectsOnly {
				lines = append(lines, "Subject")
				lines = append(lines, discovery.MissingSubjects(missing)...)
			} else {
				lines = append(lines, "Subject task")
				for _, m := range missing {
					lines = append(lines, m.Session+" "+m.ScanDir)
				}
			}
			if output != "" {
				if err := os.WriteFile(output, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if len(missing) == 0 {
				fmt.Fprintln(out, "Every task scan has a dense timeseries")
				return nil
			}
			rows := make([][]string, 0, len(missing))
			for _, m := range missing {
				rows = append(rows, []string{m.Subject(), m.Session, m.ScanDir})
			}
			fmt.Fprintln(out, renderTable([]string{"Subject", "Session", "Scan"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the report to this file")
	cmd.Flags().BoolVar(&subjectsOnly, "subjects", false, "Write only distinct subjects to --output")
	return cmd
}
