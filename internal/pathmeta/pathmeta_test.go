package pathmeta_test

import (
	"path/filepath"
	"testing"

	"hcpextract/internal/pathmeta"
)

const examplePath = "/study/HCD0001305_V1_MR/MNINonLinear/Results/tfMRI_CARIT_AP/" +
	"tfMRI_CARIT_PREPOT_AP_hp200_s4_level1_hp0_clean_ColeAnticevic.feat/ParcellatedStats/cope3.ptseries.txt"

func TestParseExamplePath(t *testing.T) {
	res := pathmeta.Parse(examplePath)
	if !res.Matched {
		t.Fatalf("expected %s to match", examplePath)
	}
	want := pathmeta.Fields{
		PID:       "HCD0001305",
		Session:   "V1",
		Task:      "CARIT-PREPOT",
		Direction: "AP",
		DataKind:  "parcellated",
		FileKind:  "cope",
		Contrast:  3,
	}
	if res.Fields != want {
		t.Fatalf("unexpected fields: got %+v want %+v", res.Fields, want)
	}
}

func TestParseRoundTrip(t *testing.T) {
	layouts := []pathmeta.Layout{
		{StudyDir: "/data/study", FeatSuffix: "hp200_s4_level1_hp0_clean_ColeAnticevic", SourceExt: "ptseries.nii"},
		{StudyDir: "relative/root", FeatSuffix: "", SourceExt: "dscalar.nii"},
	}
	fields := []pathmeta.Fields{
		{PID: "HCD0001305", Session: "V1", Task: "CARIT-PREPOT", Direction: "AP", DataKind: "parcellated", FileKind: "cope", Contrast: 1},
		{PID: "HCD2156344", Session: "V2", Task: "CARIT-PREVCOND", Direction: "PA", DataKind: "parcellated", FileKind: "varcope", Contrast: 12},
		{PID: "HCD0000001", Session: "V1", Task: "GUESSING", Direction: "PA", DataKind: "dense", FileKind: "cope", Contrast: 7},
	}
	for _, layout := range layouts {
		for _, f := range fields {
			path := layout.Build(f)
			res := pathmeta.Parse(path)
			if !res.Matched {
				t.Fatalf("expected built path %s to match", path)
			}
			if res.Fields != f {
				t.Fatalf("round trip mismatch for %s: got %+v want %+v", path, res.Fields, f)
			}
		}
	}
}

func TestParseNonMatchingNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"/",
		"not a path at all",
		"/study/HCD0001305_V1_MR/cope1.txt",
		// Direction of the scan directory and the model disagree.
		"/s/HCD0001305_V1_MR/MNINonLinear/Results/tfMRI_CARIT_AP/tfMRI_CARIT_PREPOT_PA_x.feat/ParcellatedStats/cope1.ptseries.txt",
		// Model does not belong to the acquisition.
		"/s/HCD0001305_V1_MR/MNINonLinear/Results/tfMRI_CARIT_AP/tfMRI_GUESSING_AP_x.feat/ParcellatedStats/cope1.ptseries.txt",
		// Binary source rather than derived text file.
		"/s/HCD0001305_V1_MR/MNINonLinear/Results/tfMRI_CARIT_AP/tfMRI_CARIT_PREPOT_AP_x.feat/ParcellatedStats/cope1.ptseries.nii",
		// Three digit contrast.
		"/s/HCD0001305_V1_MR/MNINonLinear/Results/tfMRI_CARIT_AP/tfMRI_CARIT_PREPOT_AP_x.feat/ParcellatedStats/cope100.ptseries.txt",
		"\x00\xff/_MR/\\\\",
	}
	for _, in := range inputs {
		res := pathmeta.Parse(in)
		if res.Matched {
			t.Fatalf("expected %q not to match, got %+v", in, res.Fields)
		}
		if res.Fields != (pathmeta.Fields{}) {
			t.Fatalf("expected all fields absent for %q, got %+v", in, res.Fields)
		}
	}
}

func TestSourceDirLayout(t *testing.T) {
	layout := pathmeta.Layout{StudyDir: "/study", FeatSuffix: "hp200_s4_level1_hp0_clean_ColeAnticevic"}
	got := layout.SourceDir("HCD0001305_V1_MR", "CARIT-PREPOT", "PA", "ParcellatedStats")
	want := filepath.Join("/study", "HCD0001305_V1_MR", "MNINonLinear", "Results", "tfMRI_CARIT_PA",
		"tfMRI_CARIT_PREPOT_PA_hp200_s4_level1_hp0_clean_ColeAnticevic.feat", "ParcellatedStats")
	if got != want {
		t.Fatalf("unexpected source dir:\n got %s\nwant %s", got, want)
	}
}

func TestDerivedPath(t *testing.T) {
	tests := map[string]string{
		"/a/cope1.ptseries.nii": "/a/cope1.ptseries.txt",
		"/a/varcope2.nii":       "/a/varcope2.txt",
		"/a/cope3":              "/a/cope3.txt",
	}
	for in, want := range tests {
		if got := pathmeta.DerivedPath(in); got != want {
			t.Fatalf("DerivedPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatsDirName(t *testing.T) {
	if got := pathmeta.StatsDirName("parcellated"); got != "ParcellatedStats" {
		t.Fatalf("unexpected stats dir: %q", got)
	}
	if got := pathmeta.DataKindFromStatsDir("ParcellatedStats"); got != "parcellated" {
		t.Fatalf("unexpected data kind: %q", got)
	}
}

func TestParseContrastFile(t *testing.T) {
	ids, ok := pathmeta.ParseContrastFile(examplePath)
	if !ok {
		t.Fatalf("expected contrast pattern to match %s", examplePath)
	}
	want := pathmeta.ContrastIDs{
		Subject:   "HCD0001305",
		Session:   "V1",
		Scan:      "tfMRI_CARIT_AP",
		Direction: "AP",
		Contrast:  "cope3",
	}
	if ids != want {
		t.Fatalf("unexpected ids: got %+v want %+v", ids, want)
	}
	if _, ok := pathmeta.ParseContrastFile("/tmp/cope3.txt"); ok {
		t.Fatal("expected unrelated file not to match")
	}
}
