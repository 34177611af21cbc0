package combine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"hcpextract/internal/aggregate"
	"hcpextract/internal/combine"
	"hcpextract/internal/config"
	"hcpextract/internal/pathmeta"
	"hcpextract/internal/status"
	"hcpextract/internal/testsupport"
)

func derived(cfg *config.Config, pid, dir, kind string, n int) string {
	return testsupport.Layout(cfg).Build(pathmeta.Fields{
		PID: pid, Session: "V1", Task: "CARIT-PREPOT", Direction: dir,
		DataKind: "parcellated", FileKind: kind, Contrast: n,
	})
}

func readParquet(t *testing.T, path string) []combine.Row {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(combine.Row), 1)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	defer pr.ReadStop()
	rows := make([]combine.Row, int(pr.GetNumRows()))
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read rows: %v", err)
	}
	return rows
}

func TestRunWritesSortedParquet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	files := map[string]string{
		derived(cfg, "HCD0000002", "AP", "cope", 1):    "3.5\n",
		derived(cfg, "HCD0000001", "PA", "varcope", 2): "0.1\n0.2\n",
		derived(cfg, "HCD0000001", "AP", "cope", 1):    "1.0\n-2.0\n",
	}
	var paths []string
	for p, content := range files {
		testsupport.WriteFile(t, p, content)
		paths = append(paths, p)
	}
	testsupport.MustUpsert(t, store, paths...)

	out := filepath.Join(cfg.Paths.OutputDir, "CARIT-PREPOT_parcellated.parquet")
	res, err := combine.Run(context.Background(), combine.Options{
		Store:      store,
		Filter:     status.Filter{Task: "CARIT-PREPOT"},
		Workers:    2,
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Files != 3 || res.Rows != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rows := readParquet(t, out)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	first := rows[0]
	if first.PID != "HCD0000001" || first.Session != "V1" || first.Scan != "tfMRI_CARIT_AP" ||
		first.Direction != "AP" || first.Contrast != "cope1" || first.Line != 0 || first.Value != 1.0 {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if rows[1].Line != 1 || rows[1].Value != -2.0 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
	if rows[4].PID != "HCD0000002" {
		t.Fatalf("expected rows sorted by pid, got %+v", rows[4])
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, ".CARIT-PREPOT_parcellated.parquet.tmp")); !os.IsNotExist(err) {
		t.Fatalf("expected temp file removed, stat err=%v", err)
	}
}

func TestRunRefusesIncompleteStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	built := derived(cfg, "HCD0000001", "AP", "cope", 1)
	testsupport.WriteFile(t, built, "1\n")
	testsupport.MustUpsert(t, store, built, derived(cfg, "HCD0000001", "AP", "cope", 2))

	out := filepath.Join(cfg.Paths.OutputDir, "out.parquet")
	_, err := combine.Run(context.Background(), combine.Options{
		Store: store, Filter: status.Filter{Task: "CARIT-PREPOT"}, Workers: 2, OutputPath: out,
	})
	if !errors.Is(err, aggregate.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err=%v", statErr)
	}
}

func TestRunRefusesEmptyStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	out := filepath.Join(cfg.Paths.OutputDir, "out.parquet")

	_, err := combine.Run(context.Background(), combine.Options{Store: store, OutputPath: out})
	if !errors.Is(err, aggregate.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err=%v", statErr)
	}
}

func TestRunFailsOnBadValue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	p := derived(cfg, "HCD0000001", "AP", "cope", 1)
	testsupport.WriteFile(t, p, "1.0\nnot-a-number\n")
	testsupport.MustUpsert(t, store, p)

	out := filepath.Join(cfg.Paths.OutputDir, "out.parquet")
	if _, err := combine.Run(context.Background(), combine.Options{Store: store, Workers: 1, OutputPath: out}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err=%v", statErr)
	}
}

func TestReadFileSplitsColumns(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "HCD0000009_V2_MR", "MNINonLinear", "Results", "tfMRI_GUESSING_PA",
		"tfMRI_GUESSING_PA_x.feat", "ParcellatedStats", "varcope12.ptseries.txt")
	testsupport.WriteFile(t, p, "1 2\n\n3\n")

	rows, err := combine.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1].Column != 1 || rows[1].Value != 2 || rows[2].Line != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].PID != "HCD0000009" || rows[0].Session != "V2" || rows[0].Contrast != "varcope12" || rows[0].Direction != "PA" {
		t.Fatalf("unexpected identifiers: %+v", rows[0])
	}
}

func TestReadFileRejectsUnknownLayout(t *testing.T) {
	p := filepath.Join(t.TempDir(), "elsewhere.txt")
	testsupport.WriteFile(t, p, "1\n")
	if _, err := combine.ReadFile(p); !errors.Is(err, combine.ErrUnparsedPath) {
		t.Fatalf("expected ErrUnparsedPath, got %v", err)
	}
}
