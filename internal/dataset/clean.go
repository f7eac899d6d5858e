package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// CleanStats summarises a cleaning pass.
type CleanStats struct {
	Lines       int `json:"lines"`
	Kept        int `json:"kept"`
	Unparseable int `json:"unparseable"`
	Invalid     int `json:"invalid"`
	SingleRole  int `json:"single_role"`
}

// Removed is the number of input lines that did not make it to the output.
func (s CleanStats) Removed() int { return s.Lines - s.Kept }

// Clean reads JSON lines from r, merges adjacent same-role turns, drops
// records that lack either role, and writes the survivors to w with
// non-ASCII characters unescaped.
func Clean(r io.Reader, w io.Writer, logger *slog.Logger) (CleanStats, error) {
	var stats CleanStats
	out := NewWriter(w)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			logger.Warn("skipping unparseable line", "line", stats.Lines, "error", err)
			stats.Unparseable++
			continue
		}
		rec, err := Decode(v)
		if err != nil {
			logger.Warn("skipping invalid record", "line", stats.Lines, "error", err)
			stats.Invalid++
			continue
		}

		rec = MergeTurns(rec)
		if !HasBothRoles(rec) {
			stats.SingleRole++
			continue
		}
		if err := out.Write(rec); err != nil {
			return stats, fmt.Errorf("write line %d: %w", stats.Lines, err)
		}
		stats.Kept++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	return stats, out.Flush()
}

// CleanFile runs Clean from inPath to outPath.
func CleanFile(inPath, outPath string, logger *slog.Logger) (CleanStats, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return CleanStats{}, fmt.Errorf("open: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return CleanStats{}, fmt.Errorf("mkdir: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return CleanStats{}, fmt.Errorf("create: %w", err)
	}
	defer out.Close()

	stats, err := Clean(in, out, logger)
	if err != nil {
		return stats, err
	}
	return stats, out.Close()
}
