package clean_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"hcpextract/internal/clean"
	"hcpextract/internal/pathmeta"
	"hcpextract/internal/testsupport"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) Publish(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunRemovesFeatAndModelFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srcs := testsupport.MakeSources(t, cfg, "HCD0000001_V1_MR", "CARIT-PREPOT", "AP", "cope1")
	derived := pathmeta.DerivedPath(srcs[0])
	testsupport.WriteFile(t, derived, "1\n")

	scanDir := filepath.Join(cfg.Paths.StudyDir, "HCD0000001_V1_MR", "MNINonLinear", "Results", "tfMRI_CARIT_AP")
	fsf := filepath.Join(scanDir, "tfMRI_CARIT_PREPOT_AP_hp200_s4_level1.fsf")
	testsupport.WriteFile(t, fsf, "model")
	otherModel := filepath.Join(scanDir, "tfMRI_CARIT_PREVCOND_AP.feat", "keep.txt")
	testsupport.WriteFile(t, otherModel, "x")
	raw := filepath.Join(scanDir, "tfMRI_CARIT_AP_Atlas_hp0_clean.dtseries.nii")
	testsupport.WriteFile(t, raw, "x")

	pub := &recorder{}
	res, err := clean.Run(context.Background(), clean.Options{StudyDir: cfg.Paths.StudyDir, Task: "CARIT-PREPOT"}, pub)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.FeatDirs) != 1 || len(res.ModelFiles) != 1 || res.Failures != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if exists(filepath.Dir(filepath.Dir(srcs[0]))) || exists(fsf) {
		t.Fatal("expected feat directory and fsf removed")
	}
	if !exists(otherModel) || !exists(raw) {
		t.Fatal("expected unrelated files kept")
	}
	if len(pub.paths) != 1 || pub.paths[0] != derived {
		t.Fatalf("expected derived path published, got %v", pub.paths)
	}
}

func TestRunDryRunKeepsFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srcs := testsupport.MakeSources(t, cfg, "HCD0000001_V1_MR", "GUESSING", "PA", "cope1")
	testsupport.WriteFile(t, pathmeta.DerivedPath(srcs[0]), "1\n")

	pub := &recorder{}
	res, err := clean.Run(context.Background(), clean.Options{StudyDir: cfg.Paths.StudyDir, Task: "GUESSING", DryRun: true}, pub)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.FeatDirs) != 1 || len(res.DerivedFiles) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !exists(srcs[0]) || len(pub.paths) != 0 {
		t.Fatal("dry run must not remove or publish")
	}
}

func TestRunLimitsToSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	keep := testsupport.MakeSources(t, cfg, "HCD0000001_V1_MR", "GUESSING", "AP", "cope1")
	drop := testsupport.MakeSources(t, cfg, "HCD0000002_V1_MR", "GUESSING", "AP", "cope1")

	res, err := clean.Run(context.Background(), clean.Options{StudyDir: cfg.Paths.StudyDir, Task: "GUESSING", Session: "HCD0000002_V1_MR"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Sessions != 1 {
		t.Fatalf("expected one session, got %d", res.Sessions)
	}
	if !exists(keep[0]) || exists(drop[0]) {
		t.Fatal("expected only the selected session cleaned")
	}
}

func TestRunRequiresTask(t *testing.T) {
	if _, err := clean.Run(context.Background(), clean.Options{StudyDir: t.TempDir()}, nil); err == nil {
		t.Fatal("expected error for empty task")
	}
}
