package hermes

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBatchCompletedJSON(t *testing.T) {
	start := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	data, err := json.Marshal(BatchCompleted{
		RunID:      "run-1",
		Output:     "out.jsonl",
		Files:      2,
		Sessions:   5,
		Records:    4,
		Failures:   1,
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"run_id", "output", "files", "sessions", "records", "failures", "started_at", "finished_at"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if raw["started_at"] != "2024-03-14T09:00:00Z" {
		t.Errorf("unexpected started_at %v", raw["started_at"])
	}
}

func TestReplySentParsing(t *testing.T) {
	var ev ReplySent
	if err := json.Unmarshal([]byte(`{"participant":"15551234567","fallback":true,"latency_ms":1200}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Participant != "15551234567" || !ev.Fallback || ev.LatencyMS != 1200 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestSubjectsNamespaced(t *testing.T) {
	for _, s := range []string{SubjectRecordWritten, SubjectBatchCompleted, SubjectReplySent} {
		if !strings.HasPrefix(s, "doppel.") {
			t.Errorf("subject %q not under doppel.", s)
		}
	}
}

func TestNewEventMsg(t *testing.T) {
	msg, err := newEventMsg(SubjectRecordWritten, RecordWritten{RunID: "run-1", Index: 3, Source: "a.txt", Turns: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != SubjectRecordWritten {
		t.Errorf("unexpected subject %s", msg.Subject)
	}
	if msg.Header.Get(HeaderContentType) != "application/json" {
		t.Errorf("unexpected content type %q", msg.Header.Get(HeaderContentType))
	}

	other, _ := newEventMsg(SubjectRecordWritten, RecordWritten{})
	id := msg.Header.Get(HeaderEventID)
	if id == "" || id == other.Header.Get(HeaderEventID) {
		t.Errorf("expected distinct event ids, got %q and %q", id, other.Header.Get(HeaderEventID))
	}

	var got RecordWritten
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if got.Index != 3 || got.Source != "a.txt" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestNewEventMsg_Unmarshalable(t *testing.T) {
	if _, err := newEventMsg(SubjectReplySent, map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
}
