package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatRunSummary(t *testing.T) {
	msg := formatRunSummary(RunSummary{
		RunID:             "run-1",
		Input:             "whatsapp_data/raw_chats",
		Output:            "train_data.jsonl",
		Files:             3,
		SkippedDuplicates: 1,
		Sessions:          12,
		Records:           10,
		Failures:          2,
		Duration:          95 * time.Second,
	})

	for _, check := range []string{
		"model mode",
		"1m35s",
		"whatsapp_data/raw_chats",
		"train_data.jsonl",
		"Files: 3",
		"1 duplicate exports skipped",
		"Sessions: 12",
		"Records: 10",
		"Failures: 2",
	} {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q, got %q", check, msg)
		}
	}
}

func TestFormatRunSummary_Clean(t *testing.T) {
	msg := formatRunSummary(RunSummary{Direct: true, Files: 1, Sessions: 1, Records: 1})
	if !strings.Contains(msg, "direct mode") || !strings.Contains(msg, "No failures") {
		t.Errorf("unexpected message %q", msg)
	}
	if strings.Contains(msg, "duplicate") {
		t.Errorf("did not expect duplicate note, got %q", msg)
	}
}

func TestPostRunSummary_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", body["channel"])
		}
		if text, _ := body["text"].(string); !strings.Contains(text, "Records: 4") {
			t.Errorf("unexpected text %q", text)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1234.5678"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostRunSummary(context.Background(), RunSummary{RunID: "r", Records: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234.5678" {
		t.Errorf("expected ts 1234.5678, got %q", ts)
	}
}

func TestPostRunSummary_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C404", discardLogger())
	p.apiURL = server.URL

	_, err := p.PostRunSummary(context.Background(), RunSummary{RunID: "r"})
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected slack error, got %v", err)
	}
}
