package dataset

import (
	"bytes"
	"encoding/json"

	"github.com/MikeSquared-Agency/doppel/internal/transcript"
)

// MergeTurns merges adjacent turns that share a role into a single turn whose
// text is the constituent texts joined by a newline. The input is not
// modified. Applying it twice gives the same result as applying it once.
func MergeTurns(rec Record) Record {
	out := Record{Contents: make([]Turn, 0, len(rec.Contents))}
	for _, turn := range rec.Contents {
		if n := len(out.Contents); n > 0 && out.Contents[n-1].Role == turn.Role {
			prev := out.Contents[n-1]
			out.Contents[n-1] = Turn{
				Role:  prev.Role,
				Parts: []Part{{Text: prev.Text() + "\n" + turn.Text()}},
			}
			continue
		}
		parts := make([]Part, len(turn.Parts))
		copy(parts, turn.Parts)
		out.Contents = append(out.Contents, Turn{Role: turn.Role, Parts: parts})
	}
	return out
}

// HasBothRoles reports whether the record has at least one user turn and at
// least one model turn.
func HasBothRoles(rec Record) bool {
	var user, model bool
	for _, t := range rec.Contents {
		switch t.Role {
		case RoleUser:
			user = true
		case RoleModel:
			model = true
		}
		if user && model {
			return true
		}
	}
	return false
}

// Marshal encodes a record as a single JSON line without escaping non-ASCII
// or HTML characters. The trailing newline is not included.
func Marshal(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// always emits back into literal characters. Escaped backslashes are
// skipped so text containing a literal "\u2028" is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		rest := data[i+1:]
		switch {
		case bytes.HasPrefix(rest, []byte("u2028")):
			out = append(out, "\u2028"...)
		case bytes.HasPrefix(rest, []byte("u2029")):
			out = append(out, "\u2029"...)
		default:
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		i += 5
	}
	return out
}

// FromSession converts a session directly into a record, without a model.
// Messages from selfName (exact match) become model turns.
func FromSession(session transcript.Session, selfName string) Record {
	rec := Record{Contents: make([]Turn, 0, len(session))}
	for _, msg := range session {
		role := RoleUser
		if msg.Sender == selfName {
			role = RoleModel
		}
		rec.Contents = append(rec.Contents, Turn{Role: role, Parts: []Part{{Text: msg.Text}}})
	}
	return MergeTurns(rec)
}
