package prompt

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/doppel/internal/transcript"
)

// FormatSession renders a session as the conversion instruction followed by
// the transcript between StartMarker and EndMarker. selfName is the sender
// whose messages become "model" turns.
func FormatSession(session transcript.Session, selfName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, conversionInstruction, selfName)

	sb.WriteString(StartMarker)
	sb.WriteString("\n")
	for _, msg := range session {
		fmt.Fprintf(&sb, "%s - %s: %s\n", msg.Timestamp.Format("03:04 PM"), msg.Sender, msg.Text)
	}
	sb.WriteString(EndMarker)
	sb.WriteString("\n")
	return sb.String()
}

// SystemInstruction is the system prompt for live replies.
func SystemInstruction(botName, persona string) string {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	return fmt.Sprintf(systemInstruction, botName, persona)
}
