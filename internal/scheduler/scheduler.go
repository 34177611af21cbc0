// Package scheduler submits array jobs to the batch scheduler.
//
// The scheduler is a black box. For extraction hcpextract hands it a shell
// script on stdin and an array range, and each array instance runs
// "hcpextract extract --array-job" against one list file with its index in
// the environment. Model fits run an existing batch script with the list
// file and acquisition name as arguments.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"hcpextract/internal/logging"
	"hcpextract/internal/pathmeta"
)

// Runner executes the submit command. Tests replace it.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, stdin string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(stdin)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// Submitter builds and runs one array submission per list file.
type Submitter struct {
	Binary      string
	MaxParallel int
	ExtraArgs   []string
	// Executable is the hcpextract binary the array instances run.
	Executable string
	ConfigPath string
	Runner     Runner
	Logger     *slog.Logger
}

// Submission describes one submitted array job.
type Submission struct {
	ListFile string
	Items    int
	Args     []string
	Script   string
	Output   string
}

// ErrEmptyList is returned when a list file carries no WorkItems.
var ErrEmptyList = errors.New("work item list is empty")

// Submit asks the scheduler to run items array instances for listFile.
func (s Submitter) Submit(ctx context.Context, task, listFile string, items int) (Submission, error) {
	sub := Submission{ListFile: listFile, Items: items}
	if items <= 0 {
		return sub, fmt.Errorf("%s: %w", listFile, ErrEmptyList)
	}
	sub.Args = append(sub.Args, s.arrayArg(items))
	sub.Args = append(sub.Args, s.ExtraArgs...)
	sub.Script = s.script(task, listFile)
	return s.run(ctx, "array_submit", task, sub, sub.Script)
}

// SubmitModels asks the scheduler to run script once per WorkItem of
// listFile, fitting the first-level model of each session. The script
// receives the list file, the acquisition name (CARIT or GUESSING) and,
// when parcellated is set, the word "parcellated".
func (s Submitter) SubmitModels(ctx context.Context, task, listFile string, items int, script string, parcellated bool) (Submission, error) {
	sub := Submission{ListFile: listFile, Items: items}
	if items <= 0 {
		return sub, fmt.Errorf("%s: %w", listFile, ErrEmptyList)
	}
	if strings.TrimSpace(script) == "" {
		return sub, errors.New("model script is required")
	}
	sub.Args = append(sub.Args, s.arrayArg(items))
	sub.Args = append(sub.Args, s.ExtraArgs...)
	sub.Args = append(sub.Args, script, listFile, pathmeta.ShortTask(task))
	if parcellated {
		sub.Args = append(sub.Args, "parcellated")
	}
	return s.run(ctx, "model_submit", task, sub, "")
}

func (s Submitter) run(ctx context.Context, eventType, task string, sub Submission, stdin string) (Submission, error) {
	binary := s.Binary
	if binary == "" {
		binary = "sbatch"
	}
	runner := s.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	logger := logging.NewComponentLogger(s.Logger, "scheduler")
	logger.Info("submitting array job",
		logging.String(logging.FieldEventType, eventType),
		logging.String(logging.FieldTask, task),
		logging.String("list", sub.ListFile),
		logging.Int("items", sub.Items),
		logging.String("binary", binary),
		logging.Any("args", sub.Args),
	)
	out, err := runner.Run(ctx, binary, sub.Args, stdin)
	sub.Output = strings.TrimSpace(out)
	if err != nil {
		return sub, err
	}
	logger.Info("array job submitted", logging.String("list", sub.ListFile), logging.String("output", sub.Output))
	return sub, nil
}

func (s Submitter) arrayArg(items int) string {
	arg := fmt.Sprintf("--array=0-%d", items-1)
	if s.MaxParallel > 0 {
		arg += fmt.Sprintf("%%%d", s.MaxParallel)
	}
	return arg
}

func (s Submitter) script(task, listFile string) string {
	exe := s.Executable
	if exe == "" {
		exe = "hcpextract"
	}
	parts := []string{shellQuote(exe)}
	if s.ConfigPath != "" {
		parts = append(parts, "--config", shellQuote(s.ConfigPath))
	}
	parts = append(parts, "extract", "--task", shellQuote(task), "--array-job", "--list", shellQuote(listFile))
	return "#!/bin/bash\nset -euo pipefail\n" + strings.Join(parts, " ") + "\n"
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
