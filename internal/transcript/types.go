package transcript

import "time"

// Message is a single line of an exported chat, including any continuation
// lines that followed it.
type Message struct {
	Timestamp time.Time
	Sender    string
	Text      string
}

// Session is a run of at least two messages with no gap above the
// segmentation threshold.
type Session []Message

// Start returns the timestamp of the first message.
func (s Session) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Timestamp
}

// End returns the timestamp of the last message.
func (s Session) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Timestamp
}

// DefaultGap is the session boundary used when none is configured.
const DefaultGap = time.Hour
