package batch

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReport_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl.report.json")
	r := &Report{
		RunID:     "run-1",
		Output:    "out.jsonl",
		StartedAt: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
		Sessions:  4,
		Records:   3,
		Errors:    []string{},
		path:      path,
	}
	r.AddError("a.txt#2: boom")
	r.countStrategy("direct")
	r.countStrategy("direct")

	if err := r.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RunID != "run-1" || loaded.Records != 3 || loaded.Sessions != 4 {
		t.Errorf("unexpected report %+v", loaded)
	}
	if loaded.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", loaded.Failures())
	}
	if loaded.Strategies["direct"] != 2 {
		t.Errorf("expected strategy counts, got %v", loaded.Strategies)
	}
	if !loaded.StartedAt.Equal(r.StartedAt) {
		t.Errorf("expected started_at preserved, got %v", loaded.StartedAt)
	}
}

func TestLoadReport_Missing(t *testing.T) {
	if _, err := LoadReport(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestReport_WriteSummary(t *testing.T) {
	r := &Report{
		RunID:             "run-1",
		Output:            "out.jsonl",
		FilesDiscovered:   3,
		FilesProcessed:    2,
		DuplicatesSkipped: []string{"dup.txt"},
		Sessions:          5,
		Records:           4,
		Strategies:        map[string]int{"fenced": 1, "direct": 3},
		Direct:            true,
		Interrupted:       true,
		Errors:            []string{"x"},
	}

	var buf bytes.Buffer
	r.WriteSummary(&buf)
	out := buf.String()

	for _, want := range []string{
		"Files processed: 2 of 3",
		"Duplicate exports skipped: 1",
		"Sessions: 5",
		"Records written: 4",
		"via direct: 3",
		"via fenced: 1",
		"Errors: 1",
		"DIRECT",
		"interrupted",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Index(out, "via direct") > strings.Index(out, "via fenced") {
		t.Error("expected strategies sorted by name")
	}
}

func TestReportPath(t *testing.T) {
	if got := ReportPath("data/train.jsonl"); got != "data/train.jsonl.report.json" {
		t.Errorf("unexpected path %s", got)
	}
}
