package worklist_test

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"hcpextract/internal/testsupport"
	"hcpextract/internal/worklist"
)

func TestLoadSkipsBlankAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CARIT-PREPOT-l1-list_2run.txt")
	testsupport.WriteFile(t, path, "# pid label fsf\n\n"+
		"HCD0001305_V1_MR tfMRI_CARIT_AP@tfMRI_CARIT_PA /models/a.fsf\n"+
		"HCD2156344_V1_MR\ttfMRI_CARIT_PA   /models/b.fsf\n")

	items, err := worklist.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].PID != "HCD0001305_V1_MR" || items[0].Provenance != "/models/a.fsf" || items[0].Line != 3 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Label != "tfMRI_CARIT_PA" || items[1].Source != path {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	testsupport.WriteFile(t, path, "HCD0001305_V1_MR tfMRI_CARIT_AP\n")
	if _, err := worklist.Load(path); err == nil {
		t.Fatal("expected error for two-column line")
	}
}

func TestDirections(t *testing.T) {
	item := worklist.Item{Label: "tfMRI_CARIT_AP@tfMRI_CARIT_PA"}
	dirs, err := item.Directions()
	if err != nil {
		t.Fatalf("Directions: %v", err)
	}
	if len(dirs) != 2 || dirs[0].Tag != "AP" || dirs[1].Tag != "PA" || dirs[1].Label != "tfMRI_CARIT_PA" {
		t.Fatalf("unexpected directions: %+v", dirs)
	}

	bad := worklist.Item{Label: "tfMRI_CARIT_AP@tfMRI_CARIT_LR"}
	if _, err := bad.Directions(); !errors.Is(err, worklist.ErrBadDirection) {
		t.Fatalf("expected ErrBadDirection, got %v", err)
	}
}

func TestPartitionDisjointAndComplete(t *testing.T) {
	for _, size := range []int{0, 1, 5, 17} {
		items := make([]worklist.Item, size)
		for i := range items {
			items[i] = worklist.Item{PID: fmt.Sprintf("HCD%07d_V1_MR", i), Label: "tfMRI_CARIT_AP", Provenance: "x"}
		}
		for _, n := range []int{-1, 0, 1, 2, 3, 8, 40} {
			parts := worklist.Partition(items, n)
			want := n
			if want < 1 {
				want = 1
			}
			if want > size {
				want = size
			}
			if len(parts) != want {
				t.Fatalf("size=%d n=%d: expected %d partitions, got %d", size, n, want, len(parts))
			}
			seen := map[string]int{}
			for _, part := range parts {
				for _, it := range part {
					seen[it.PID]++
				}
			}
			if len(seen) != size {
				t.Fatalf("size=%d n=%d: union has %d items", size, n, len(seen))
			}
			for pid, count := range seen {
				if count != 1 {
					t.Fatalf("size=%d n=%d: %s appears %d times", size, n, pid, count)
				}
			}
		}
	}
}

func TestIndexFromEnv(t *testing.T) {
	t.Setenv("TEST_ARRAY_INDEX", "3")
	idx, err := worklist.IndexFromEnv("TEST_ARRAY_INDEX")
	if err != nil || idx != 3 {
		t.Fatalf("expected 3, got %d err=%v", idx, err)
	}
	t.Setenv("TEST_ARRAY_INDEX", "abc")
	if _, err := worklist.IndexFromEnv("TEST_ARRAY_INDEX"); err == nil {
		t.Fatal("expected parse error")
	}
	t.Setenv("TEST_ARRAY_INDEX", "-2")
	if _, err := worklist.IndexFromEnv("TEST_ARRAY_INDEX"); err == nil {
		t.Fatal("expected negative index error")
	}
	if _, err := worklist.IndexFromEnv("TEST_ARRAY_INDEX_UNSET"); err == nil {
		t.Fatal("expected unset error")
	}
}

func TestSelect(t *testing.T) {
	items := []worklist.Item{{PID: "a"}, {PID: "b"}}
	got, err := worklist.Select(items, 1)
	if err != nil || len(got) != 1 || got[0].PID != "b" {
		t.Fatalf("unexpected select result %+v err=%v", got, err)
	}
	if _, err := worklist.Select(items, 2); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	items := []worklist.Item{
		{PID: "HCD0001305_V1_MR", Label: "tfMRI_GUESSING_AP@tfMRI_GUESSING_PA", Provenance: "/m/g.fsf"},
	}
	var buf bytes.Buffer
	if err := worklist.Write(&buf, items); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "HCD0001305_V1_MR tfMRI_GUESSING_AP@tfMRI_GUESSING_PA /m/g.fsf\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
