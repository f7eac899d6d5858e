package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/doppel/internal/transcript"
)

func TestFormatSession(t *testing.T) {
	base := time.Date(2024, 3, 12, 14, 5, 0, 0, time.UTC)
	session := transcript.Session{
		{Timestamp: base, Sender: "Alice", Text: "are we still on for tonight? 🍕"},
		{Timestamp: base.Add(10 * time.Second), Sender: "Bob", Text: "yes!\nsee you at 8"},
	}

	got := FormatSession(session, "Bob")

	checks := []string{
		"Messages from 'Bob' should be assigned the 'model' role",
		`"contents"`,
		"02:05 PM - Alice: are we still on for tonight? 🍕\n",
		"02:05 PM - Bob: yes!\nsee you at 8\n",
	}
	for _, c := range checks {
		if !strings.Contains(got, c) {
			t.Errorf("expected prompt to contain %q, got:\n%s", c, got)
		}
	}

	start := strings.Index(got, StartMarker)
	end := strings.Index(got, EndMarker)
	if start < 0 || end < 0 || end < start {
		t.Fatalf("markers missing or out of order:\n%s", got)
	}
	body := got[start:end]
	for _, want := range []string{"Alice", "Bob", "are we still on for tonight?", "see you at 8"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q between the markers", want)
		}
	}
	if !strings.HasSuffix(got, EndMarker+"\n") {
		t.Errorf("prompt should end with the end marker, got %q", got[len(got)-30:])
	}
}

func TestFormatSession_Pure(t *testing.T) {
	session := transcript.Session{
		{Timestamp: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), Sender: "A", Text: "x"},
		{Timestamp: time.Date(2024, 1, 1, 9, 1, 0, 0, time.UTC), Sender: "B", Text: "y"},
	}
	if FormatSession(session, "A") != FormatSession(session, "A") {
		t.Error("FormatSession should be deterministic")
	}
}

func TestSystemInstruction(t *testing.T) {
	got := SystemInstruction("Sam", "")
	want := "Your name is Sam. You are a helpful friend. Just keep the conversation going with a casual tone."
	if got != want {
		t.Errorf("SystemInstruction = %q, want %q", got, want)
	}

	custom := SystemInstruction("Sam", "Answer like a pirate.")
	if custom != "Your name is Sam. Answer like a pirate." {
		t.Errorf("custom persona = %q", custom)
	}
}
