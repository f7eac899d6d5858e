package dataset

import "strings"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one text fragment of a turn.
type Part struct {
	Text string `json:"text"`
}

// Turn is one role-tagged utterance.
type Turn struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text joins the turn's parts with newlines.
func (t Turn) Text() string {
	if len(t.Parts) == 1 {
		return t.Parts[0].Text
	}
	texts := make([]string, len(t.Parts))
	for i, p := range t.Parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}

// Record is one training example: a single conversation.
type Record struct {
	Contents []Turn `json:"contents"`
}
