package transcript

import "time"

// Segment groups ordered messages into sessions. A gap larger than maxGap
// closes the current group; groups of a single message are dropped, so an
// isolated message never reaches the output.
func Segment(msgs []Message, maxGap time.Duration) []Session {
	if len(msgs) == 0 {
		return nil
	}

	var sessions []Session
	current := Session{msgs[0]}

	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Sub(msgs[i-1].Timestamp) > maxGap {
			if len(current) > 1 {
				sessions = append(sessions, current)
			}
			current = Session{}
		}
		current = append(current, msgs[i])
	}

	if len(current) > 1 {
		sessions = append(sessions, current)
	}
	return sessions
}
