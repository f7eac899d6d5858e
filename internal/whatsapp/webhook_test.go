package whatsapp

import (
	"errors"
	"testing"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000000", "phone_number_id": "123"},
        "contacts": [{"wa_id": "15551234567", "profile": {"name": "Alice"}}],
        "messages": [
          {"from": "15551234567", "id": "wamid.1", "timestamp": "1710400000", "type": "text", "text": {"body": "hi"}},
          {"from": "15551234567", "id": "wamid.2", "timestamp": "1710400001", "type": "image"},
          {"from": "15559876543", "id": "wamid.3", "timestamp": "1710400002", "type": "text", "text": {"body": "yo"}}
        ]
      }
    }, {
      "field": "messages",
      "value": {"messaging_product": "whatsapp", "statuses": [{"id": "wamid.0", "status": "delivered"}]}
    }]
  }]
}`

func TestParsePayload_TextMessages(t *testing.T) {
	p, err := ParsePayload([]byte(samplePayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := p.TextMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 text messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0] != (InboundText{From: "15551234567", ID: "wamid.1", Body: "hi"}) {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].From != "15559876543" || msgs[1].Body != "yo" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestParsePayload_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", ``, ErrEmptyPayload},
		{"not json", `hello`, ErrEmptyPayload},
		{"wrong object", `{"object":"page","entry":[{}]}`, ErrInvalidObject},
		{"missing object", `{"entry":[{}]}`, ErrInvalidObject},
		{"no entries", `{"object":"whatsapp_business_account","entry":[]}`, ErrNoEntries},
		{"missing entries", `{"object":"whatsapp_business_account"}`, ErrNoEntries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTextMessages_EntryWithoutChanges(t *testing.T) {
	p, err := ParsePayload([]byte(`{"object":"whatsapp_business_account","entry":[{"id":"x"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs := p.TextMessages(); len(msgs) != 0 {
		t.Errorf("expected no messages, got %+v", msgs)
	}
}

func TestParsePayload_SkipsUndecodableMessages(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"value":{
		"messaging_product":"whatsapp",
		"metadata":{"phone_number_id":"123"},
		"messages":[
			{"from":"111","id":"wamid.a","type":"text","text":"str"},
			{"from":222,"id":"wamid.b","type":"text","text":{"body":"numeric sender"}},
			{"from":"333","id":"wamid.c","type":"text","text":{"body":"ok"}}
		]}}]}]}`

	p, err := ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Skipped() != 2 {
		t.Errorf("expected 2 skipped messages, got %d", p.Skipped())
	}
	msgs := p.TextMessages()
	if len(msgs) != 1 || msgs[0].From != "333" || msgs[0].Body != "ok" {
		t.Fatalf("expected the valid message kept, got %+v", msgs)
	}

	value := p.Entry[0].Changes[0].Value
	if value.MessagingProduct != "whatsapp" || value.Metadata.PhoneNumberID != "123" {
		t.Errorf("expected other value fields decoded, got %+v", value)
	}
}
