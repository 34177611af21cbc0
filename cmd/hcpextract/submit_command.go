package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hcpextract/internal/config"
	"hcpextract/internal/scheduler"
	"hcpextract/internal/worklist"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var task string
	var lists []string
	var models, parcellated bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one scheduler array job per WorkItem list",
		Long: "By default each array instance runs \"hcpextract extract --array-job\".\n" +
			"With --models each instance runs scheduler.model_script instead, fitting the\n" +
			"first-level model of one session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			task = strings.TrimSpace(task)
			if err := config.ValidateTask(task); err != nil {
				return err
			}
			if len(lists) == 0 {
				lists, err = cfg.ListFiles(task)
				if err != nil {
					return err
				}
			}
			if len(lists) == 0 {
				return fmt.Errorf("no list files for %s in %s", task, cfg.Paths.ListDir)
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			submitter := scheduler.Submitter{
				Binary:      cfg.Scheduler.SubmitBinary,
				MaxParallel: cfg.Scheduler.MaxParallel,
				ExtraArgs:   cfg.Scheduler.ExtraArgs,
				Executable:  exe,
				ConfigPath:  ctx.loadedConfigPath(),
				Logger:      logger,
			}

			rows := make([][]string, 0, len(lists))
			for _, list := range lists {
				items, err := worklist.Load(list)
				if err != nil {
					return err
				}
				var sub scheduler.Submission
				if models {
					sub, err = submitter.SubmitModels(cmd.Context(), task, list, len(items), cfg.Scheduler.ModelScript, parcellated)
				} else {
					sub, err = submitter.Submit(cmd.Context(), task, list, len(items))
				}
				if err != nil {
					return err
				}
				rows = append(rows, []string{sub.ListFile, itoa(sub.Items), sub.Output})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"List", "Instances", "Scheduler"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "First-level model")
	cmd.Flags().StringSliceVarP(&lists, "list", "l", nil, "WorkItem list file (repeatable; defaults to the task lists in paths.list_dir)")
	cmd.Flags().BoolVar(&models, "models", false, "Submit first-level model fits instead of extraction")
	cmd.Flags().BoolVar(&parcellated, "parcellated", false, "Fit models on parcellated data (with --models)")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}
