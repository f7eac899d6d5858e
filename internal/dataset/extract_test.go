package dataset

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strategy string
	}{
		{"direct", `{"contents":[]}`, "direct"},
		{"direct with whitespace", "\n  {\"contents\":[]}  \n", "direct"},
		{"fenced", "Here you go:\n```json\n{\"contents\":[]}\n```\nEnjoy.", "fenced"},
		{"brace span", "Sure! {\"contents\":[]} Hope that helps", "brace_span"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, strategy, err := Extract(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strategy != tt.strategy {
				t.Errorf("expected strategy %q, got %q", tt.strategy, strategy)
			}
			obj, ok := v.(map[string]any)
			if !ok {
				t.Fatalf("expected object, got %T", v)
			}
			if _, ok := obj["contents"]; !ok {
				t.Error("expected contents key")
			}
		})
	}
}

func TestExtract_NoJSON(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "} backwards {", "```json\nnope\n```"} {
		if _, _, err := Extract(raw); !errors.Is(err, ErrNoJSON) {
			t.Errorf("Extract(%q): expected ErrNoJSON, got %v", raw, err)
		}
	}
}

func TestFencedJSON_FirstBlockWins(t *testing.T) {
	raw := "```json\n{\"a\":1}\n```\n```json\n{\"b\":2}\n```"
	v, ok := FencedJSON(raw)
	if !ok {
		t.Fatal("expected match")
	}
	if _, ok := v.(map[string]any)["a"]; !ok {
		t.Errorf("expected first block, got %v", v)
	}
}
