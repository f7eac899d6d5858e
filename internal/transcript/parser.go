package transcript

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/MikeSquared-Agency/doppel/internal/clock"
)

// linePattern matches "<date>, <time>[ am|pm] - <sender>: <text>". Exports
// from newer phones put a narrow no-break space before the meridiem.
var linePattern = regexp.MustCompile(
	`^(\d{1,2}/\d{1,2}/\d{2,4},[\s\x{00a0}\x{202f}]\d{1,2}:\d{2}(?:[\s\x{00a0}\x{202f}]?(?i:[ap]\.?m\.?))?)[\s\x{00a0}\x{202f}]-[\s\x{00a0}\x{202f}]([^:]+):[\s\x{00a0}\x{202f}](.*)$`,
)

var meridiemPattern = regexp.MustCompile(`\s*([AP])\.?M\.?$`)

// timestampLayouts are tried in order; the first that parses wins. Day-first
// is preferred over month-first, so "03/04/2024" reads as 3 April.
var timestampLayouts = []string{
	"2/1/2006, 3:04 PM",
	"2/1/2006, 15:04",
	"1/2/2006, 3:04 PM",
	"1/2/2006, 15:04",
	"2/1/06, 3:04 PM",
	"2/1/06, 15:04",
	"1/2/06, 3:04 PM",
	"1/2/06, 15:04",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser turns exported chat text into messages.
type Parser struct {
	clock    clock.Clock
	location *time.Location
	logger   *slog.Logger
}

// NewParser returns a parser that reads timestamps in the local zone and
// falls back to clk.Now() for timestamps it cannot read.
func NewParser(clk clock.Clock, logger *slog.Logger) *Parser {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Parser{clock: clk, location: time.Local, logger: logger}
}

// WithLocation returns a copy of the parser that interprets timestamps in loc.
func (p *Parser) WithLocation(loc *time.Location) *Parser {
	cp := *p
	cp.location = loc
	return &cp
}

// ParseFile reads and parses one export. Only I/O errors are returned.
func (p *Parser) ParseFile(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(Decode(data)), nil
}

// Parse splits text into messages. Lines that do not start a new message are
// appended to the open one; lines before the first message are ignored.
// Trailing empty lines are not part of a message's text.
func (p *Parser) Parse(text string) []Message {
	var (
		msgs    []Message
		current *Message
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			if current != nil {
				current.Text += "\n" + line
			}
			continue
		}

		if current != nil {
			msgs = append(msgs, closeMessage(*current))
		}
		current = &Message{
			Timestamp: p.parseTimestamp(m[1]),
			Sender:    strings.TrimSpace(m[2]),
			Text:      m[3],
		}
	}

	if current != nil {
		msgs = append(msgs, closeMessage(*current))
	}
	return msgs
}

// closeMessage drops the empty continuation lines that trail a message, such
// as the newline ending the file. Blank lines inside the text are kept.
func closeMessage(m Message) Message {
	m.Text = strings.TrimRight(m.Text, "\n")
	return m
}

func (p *Parser) parseTimestamp(raw string) time.Time {
	s := normalizeTimestamp(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, p.location); err == nil {
			return ts
		}
	}

	now := p.clock.Now()
	if p.logger != nil {
		p.logger.Warn("could not parse timestamp, using current time", "timestamp", raw)
	}
	return now
}

func normalizeTimestamp(raw string) string {
	s := strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(raw)
	s = strings.ToUpper(strings.TrimSpace(s))
	return meridiemPattern.ReplaceAllString(s, " ${1}M")
}

// Decode converts raw export bytes to text. UTF-8 is tried first; anything
// else is read as ISO-8859-1, which accepts every byte sequence.
func Decode(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}
