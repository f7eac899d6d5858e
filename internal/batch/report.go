package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Report records what a run did. It is written next to the dataset as
// <output>.report.json.
type Report struct {
	RunID             string         `json:"run_id"`
	Input             string         `json:"input"`
	Output            string         `json:"output"`
	Direct            bool           `json:"direct"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
	FilesDiscovered   int            `json:"files_discovered"`
	FilesProcessed    int            `json:"files_processed"`
	DuplicatesSkipped []string       `json:"duplicates_skipped,omitempty"`
	Sessions          int            `json:"sessions"`
	Records           int            `json:"records"`
	Strategies        map[string]int `json:"extract_strategies,omitempty"`
	Interrupted       bool           `json:"interrupted,omitempty"`
	Errors            []string       `json:"errors"`

	path string
}

// ReportPath returns the report location for a dataset output path.
func ReportPath(output string) string {
	return output + ".report.json"
}

// LoadReport reads a saved report.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	r.path = path
	return &r, nil
}

// Save persists the report to disk.
func (r *Report) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(r.path, data, 0o644)
}

// AddError records a processing error.
func (r *Report) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Failures is the number of recorded errors.
func (r *Report) Failures() int { return len(r.Errors) }

func (r *Report) countStrategy(name string) {
	if r.Strategies == nil {
		r.Strategies = make(map[string]int)
	}
	r.Strategies[name]++
}

// WriteSummary prints a human-readable summary.
func (r *Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\n=== Dataset Summary ===\n")
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	fmt.Fprintf(w, "Files processed: %d of %d\n", r.FilesProcessed, r.FilesDiscovered)
	if n := len(r.DuplicatesSkipped); n > 0 {
		fmt.Fprintf(w, "Duplicate exports skipped: %d\n", n)
	}
	fmt.Fprintf(w, "Sessions: %d\n", r.Sessions)
	fmt.Fprintf(w, "Records written: %d\n", r.Records)
	if len(r.Strategies) > 0 {
		names := make([]string, 0, len(r.Strategies))
		for name := range r.Strategies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  via %s: %d\n", name, r.Strategies[name])
		}
	}
	fmt.Fprintf(w, "Errors: %d\n", len(r.Errors))
	if r.Direct {
		fmt.Fprintf(w, "Mode: DIRECT (no model calls)\n")
	}
	if r.Interrupted {
		fmt.Fprintf(w, "Run was interrupted; partial results written.\n")
	}
	fmt.Fprintf(w, "Output: %s\n", r.Output)
	fmt.Fprintf(w, "Report: %s\n", r.path)
}
