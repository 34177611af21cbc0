package scheduler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hcpextract/internal/scheduler"
)

type fakeRunner struct {
	name  string
	args  []string
	stdin string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, stdin string) (string, error) {
	f.name, f.args, f.stdin = name, args, stdin
	if f.err != nil {
		return "", f.err
	}
	return "Submitted batch job 42\n", nil
}

func TestSubmitBuildsArrayCommand(t *testing.T) {
	runner := &fakeRunner{}
	s := scheduler.Submitter{
		MaxParallel: 50,
		ExtraArgs:   []string{"--partition=short"},
		Executable:  "/opt/bin/hcpextract",
		ConfigPath:  "/home/me/my config.toml",
		Runner:      runner,
	}

	sub, err := s.Submit(context.Background(), "CARIT-PREPOT", "/lists/CARIT-PREPOT-l1-list_1run.txt", 12)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if runner.name != "sbatch" {
		t.Fatalf("expected sbatch, got %q", runner.name)
	}
	if len(runner.args) != 2 || runner.args[0] != "--array=0-11%50" || runner.args[1] != "--partition=short" {
		t.Fatalf("unexpected args: %v", runner.args)
	}
	want := "/opt/bin/hcpextract --config '/home/me/my config.toml' extract --task CARIT-PREPOT --array-job --list /lists/CARIT-PREPOT-l1-list_1run.txt"
	if !strings.Contains(runner.stdin, want) {
		t.Fatalf("script missing command:\n%s", runner.stdin)
	}
	if sub.Output != "Submitted batch job 42" {
		t.Fatalf("unexpected output %q", sub.Output)
	}
}

func TestSubmitRejectsEmptyList(t *testing.T) {
	runner := &fakeRunner{}
	_, err := scheduler.Submitter{Runner: runner}.Submit(context.Background(), "GUESSING", "empty.txt", 0)
	if !errors.Is(err, scheduler.ErrEmptyList) {
		t.Fatalf("expected ErrEmptyList, got %v", err)
	}
	if runner.name != "" {
		t.Fatal("runner must not be called for an empty list")
	}
}

func TestSubmitPropagatesRunnerError(t *testing.T) {
	boom := errors.New("scheduler down")
	_, err := scheduler.Submitter{Runner: &fakeRunner{err: boom}}.Submit(context.Background(), "GUESSING", "l.txt", 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestExecRunnerPassesStdin(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake_sbatch")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"args=$*\"\ncat\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	out, err := scheduler.ExecRunner{}.Run(context.Background(), script, []string{"--array=0-1"}, "payload\n")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "args=--array=0-1") || !strings.Contains(out, "payload") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSubmitModelsPassesScriptArguments(t *testing.T) {
	tests := []struct {
		name        string
		parcellated bool
		want        []string
	}{
		{"dense", false, []string{"--array=0-2%200", "sbatch_TaskfMRIAnalysis.bash", "first_level/GUESSING-l1-list_1run.txt", "GUESSING"}},
		{"parcellated", true, []string{"--array=0-2%200", "sbatch_TaskfMRIAnalysis.bash", "first_level/GUESSING-l1-list_1run.txt", "GUESSING", "parcellated"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s := scheduler.Submitter{MaxParallel: 200, Runner: runner}
			if _, err := s.SubmitModels(context.Background(), "GUESSING", "first_level/GUESSING-l1-list_1run.txt", 3, "sbatch_TaskfMRIAnalysis.bash", tc.parcellated); err != nil {
				t.Fatalf("SubmitModels: %v", err)
			}
			if strings.Join(runner.args, " ") != strings.Join(tc.want, " ") {
				t.Fatalf("unexpected args %v, want %v", runner.args, tc.want)
			}
			if runner.stdin != "" {
				t.Fatalf("model fits take no script on stdin, got %q", runner.stdin)
			}
		})
	}
}

func TestSubmitModelsUsesAcquisitionName(t *testing.T) {
	runner := &fakeRunner{}
	_, err := scheduler.Submitter{Runner: runner}.SubmitModels(context.Background(), "CARIT-PREVCOND", "l.txt", 1, "fit.bash", false)
	if err != nil {
		t.Fatalf("SubmitModels: %v", err)
	}
	if runner.args[len(runner.args)-1] != "CARIT" {
		t.Fatalf("expected acquisition name last, got %v", runner.args)
	}
	if _, err := (scheduler.Submitter{Runner: runner}).SubmitModels(context.Background(), "GUESSING", "l.txt", 1, "", false); err == nil {
		t.Fatal("expected error without a model script")
	}
}
