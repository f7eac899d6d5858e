package transcript

// overlapThreshold is the fraction of a file's messages that must already
// appear in another export for it to count as a duplicate.
const overlapThreshold = 0.8

// Fingerprint identifies the messages of one export by minute and sender.
type Fingerprint struct {
	Path string
	keys map[string]struct{}
}

// BuildFingerprint creates a fingerprint from parsed messages.
func BuildFingerprint(path string, msgs []Message) Fingerprint {
	fp := Fingerprint{Path: path, keys: make(map[string]struct{}, len(msgs))}
	for _, m := range msgs {
		fp.keys[messageKey(m)] = struct{}{}
	}
	return fp
}

// Len returns the number of distinct messages in the fingerprint.
func (f Fingerprint) Len() int { return len(f.keys) }

// FindDuplicates returns the paths of exports whose messages are mostly
// contained in an earlier, non-duplicate export. Order decides which copy of
// a chat is kept.
func FindDuplicates(fps []Fingerprint) map[string]bool {
	duplicates := make(map[string]bool)
	for i, candidate := range fps {
		if candidate.Len() == 0 {
			continue
		}
		for j := 0; j < i; j++ {
			if duplicates[fps[j].Path] {
				continue
			}
			if isOverlapping(fps[j], candidate) {
				duplicates[candidate.Path] = true
				break
			}
		}
	}
	return duplicates
}

// isOverlapping reports whether at least overlapThreshold of b's messages are
// present in a.
func isOverlapping(a, b Fingerprint) bool {
	if b.Len() == 0 {
		return false
	}
	matches := 0
	for k := range b.keys {
		if _, ok := a.keys[k]; ok {
			matches++
		}
	}
	return float64(matches)/float64(b.Len()) >= overlapThreshold
}

func messageKey(m Message) string {
	return m.Timestamp.Format("2006-01-02T15:04") + "|" + m.Sender
}
