package whatsapp

import (
	"encoding/json"
	"errors"
)

const businessAccountObject = "whatsapp_business_account"

var (
	ErrEmptyPayload  = errors.New("empty webhook payload")
	ErrInvalidObject = errors.New("invalid webhook object")
	ErrNoEntries     = errors.New("no entries in webhook payload")
)

// Payload is the webhook notification envelope.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`

	// Skipped counts messages that could not be decoded.
	Skipped int `json:"-"`
}

// UnmarshalJSON decodes messages one by one so a single message of an
// unexpected shape does not discard its siblings.
func (v *Value) UnmarshalJSON(data []byte) error {
	type plain Value
	var raw struct {
		plain
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*v = Value(raw.plain)
	v.Messages = nil
	for _, m := range raw.Messages {
		var msg Message
		if err := json.Unmarshal(m, &msg); err != nil {
			v.Skipped++
			continue
		}
		v.Messages = append(v.Messages, msg)
	}
	return nil
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// InboundText is a text message pulled out of a payload.
type InboundText struct {
	From string
	ID   string
	Body string
}

// ParsePayload decodes a webhook body and checks the envelope.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if len(data) == 0 {
		return p, ErrEmptyPayload
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, ErrEmptyPayload
	}
	if p.Object != businessAccountObject {
		return p, ErrInvalidObject
	}
	if len(p.Entry) == 0 {
		return p, ErrNoEntries
	}
	return p, nil
}

// Skipped is the number of undecodable messages across the payload.
func (p Payload) Skipped() int {
	n := 0
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			n += c.Value.Skipped
		}
	}
	return n
}

// TextMessages returns text messages in payload order. Other message types
// are skipped.
func (p Payload) TextMessages() []InboundText {
	var out []InboundText
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					continue
				}
				out = append(out, InboundText{From: m.From, ID: m.ID, Body: m.Text.Body})
			}
		}
	}
	return out
}
