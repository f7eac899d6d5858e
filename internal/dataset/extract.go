package dataset

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no strategy finds parseable JSON in a response.
var ErrNoJSON = errors.New("no JSON found in model response")

// Strategy pulls a JSON value out of raw model output.
type Strategy struct {
	Name  string
	Apply func(raw string) (any, bool)
}

// Strategies are tried in order by Extract.
var Strategies = []Strategy{
	{Name: "direct", Apply: DirectJSON},
	{Name: "fenced", Apply: FencedJSON},
	{Name: "brace_span", Apply: BraceSpan},
}

var fencedBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Extract returns the first value produced by Strategies and the name of the
// strategy that produced it.
func Extract(raw string) (any, string, error) {
	for _, s := range Strategies {
		if v, ok := s.Apply(raw); ok {
			return v, s.Name, nil
		}
	}
	return nil, "", ErrNoJSON
}

// DirectJSON parses the whole response.
func DirectJSON(raw string) (any, bool) {
	return parseJSON(raw)
}

// FencedJSON parses the first ```json fenced block.
func FencedJSON(raw string) (any, bool) {
	m := fencedBlock.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return parseJSON(m[1])
}

// BraceSpan parses the text between the first '{' and the last '}'.
func BraceSpan(raw string) (any, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	return parseJSON(raw[start : end+1])
}

func parseJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
