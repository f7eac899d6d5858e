package reply

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/doppel/internal/gemini"
	"github.com/MikeSquared-Agency/doppel/internal/hermes"
	"github.com/MikeSquared-Agency/doppel/internal/history"
	"github.com/MikeSquared-Agency/doppel/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeModel struct {
	mu       sync.Mutex
	requests []gemini.Request
	reply    string
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, req gemini.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type fakePublisher struct {
	subjects []string
	events   []any
}

func (p *fakePublisher) Publish(subject string, data any) error {
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, data)
	return nil
}

func TestReply_Success(t *testing.T) {
	model := &fakeModel{reply: "hey!"}
	cache := history.New(10)
	svc := NewService(model, cache, "Sam", "", discardLogger())

	got := svc.Reply(context.Background(), "p1", "hi")
	if got != "hey!" {
		t.Fatalf("expected model reply, got %q", got)
	}

	h := cache.Snapshot("p1")
	if len(h) != 2 || h[0].Text != "hi" || h[1].Text != "hey!" {
		t.Errorf("unexpected history %v", h)
	}
}

func TestReply_RequestShape(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc := NewService(model, history.New(10), "Sam", "", discardLogger())

	svc.Reply(context.Background(), "p1", "first")
	svc.Reply(context.Background(), "p1", "second")

	if len(model.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(model.requests))
	}
	req := model.requests[1]

	if len(req.Contents) != 3 {
		t.Fatalf("expected history plus new turn, got %d contents", len(req.Contents))
	}
	wantRoles := []string{"user", "model", "user"}
	wantTexts := []string{"first", "ok", "second"}
	for i, c := range req.Contents {
		if c.Role != wantRoles[i] || c.Parts[0].Text != wantTexts[i] {
			t.Errorf("content %d: got %s %q", i, c.Role, c.Parts[0].Text)
		}
	}

	cfg := req.GenerationConfig
	if cfg == nil || *cfg.Temperature != 1 || *cfg.TopP != 0.95 || cfg.MaxOutputTokens != 8192 {
		t.Errorf("unexpected generation config %+v", cfg)
	}
	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "TEXT" {
		t.Errorf("expected TEXT modality, got %v", cfg.ResponseModalities)
	}

	if len(req.SafetySettings) != 4 {
		t.Fatalf("expected 4 safety settings, got %d", len(req.SafetySettings))
	}
	for _, s := range req.SafetySettings {
		if s.Threshold != "OFF" {
			t.Errorf("expected OFF threshold for %s, got %s", s.Category, s.Threshold)
		}
	}

	want := "Your name is Sam. You are a helpful friend. Just keep the conversation going with a casual tone."
	if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != want {
		t.Errorf("unexpected system instruction %+v", req.SystemInstruction)
	}
}

func TestReply_CustomPersona(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc := NewService(model, history.New(10), "Sam", "You are sarcastic.", discardLogger())
	svc.Reply(context.Background(), "p1", "hi")

	if got := model.requests[0].SystemInstruction.Parts[0].Text; got != "Your name is Sam. You are sarcastic." {
		t.Errorf("unexpected system instruction %q", got)
	}
}

func TestReply_FallbackLeavesHistory(t *testing.T) {
	model := &fakeModel{reply: "hey"}
	cache := history.New(10)
	svc := NewService(model, cache, "Sam", "", discardLogger())
	svc.Reply(context.Background(), "p1", "hi")

	model.err = errors.New("quota exceeded")
	got := svc.Reply(context.Background(), "p1", "still there?")
	if got != FallbackText {
		t.Fatalf("expected fallback, got %q", got)
	}
	if h := cache.Snapshot("p1"); len(h) != 2 {
		t.Errorf("expected history untouched, got %v", h)
	}
}

func TestReply_HistoryBounded(t *testing.T) {
	const n = 2
	model := &fakeModel{reply: "ok"}
	cache := history.New(n)
	svc := NewService(model, cache, "Sam", "", discardLogger())

	for i := 0; i < 2*n+1; i++ {
		svc.Reply(context.Background(), "p1", "msg")
	}
	if h := cache.Snapshot("p1"); len(h) != 2*n {
		t.Errorf("expected %d entries, got %d", 2*n, len(h))
	}
	if last := model.requests[len(model.requests)-1]; len(last.Contents) != 2*n+1 {
		t.Errorf("expected bounded history in request, got %d contents", len(last.Contents))
	}
}

func TestReply_MetricsAndEvents(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	pub := &fakePublisher{}
	svc := NewService(model, history.New(10), "Sam", "", discardLogger()).
		WithMetrics(metrics).
		WithEvents(pub)

	svc.Reply(context.Background(), "p1", "hi")
	model.err = errors.New("down")
	svc.Reply(context.Background(), "p2", "hi")

	rec := httptest.NewRecorder()
	observability.MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	for _, want := range []string{
		`test_replies_total{outcome="ok"} 1`,
		`test_replies_total{outcome="fallback"} 1`,
		`test_history_participants 2`,
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.subjects[0] != hermes.SubjectReplySent {
		t.Errorf("unexpected subject %s", pub.subjects[0])
	}
	if ev := pub.events[1].(hermes.ReplySent); !ev.Fallback || ev.Participant != "p2" {
		t.Errorf("unexpected event %+v", ev)
	}
}
