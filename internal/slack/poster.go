package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster posts batch run summaries to a Slack channel.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// RunSummary is the part of a batch run report worth announcing.
type RunSummary struct {
	RunID             string
	Input             string
	Output            string
	Files             int
	SkippedDuplicates int
	Sessions          int
	Records           int
	Failures          int
	Duration          time.Duration
	Direct            bool
}

// PostRunSummary posts the summary and returns the message timestamp.
func (p *Poster) PostRunSummary(ctx context.Context, s RunSummary) (string, error) {
	text := formatRunSummary(s)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "Run `" + s.RunID + "`",
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted run summary to slack", "ts", slackResp.TS, "run_id", s.RunID)
	return slackResp.TS, nil
}

func formatRunSummary(s RunSummary) string {
	var sb strings.Builder

	mode := "model"
	if s.Direct {
		mode = "direct"
	}
	fmt.Fprintf(&sb, "*Dataset run finished* (%s mode, %s)\n", mode, s.Duration.Round(time.Second))
	fmt.Fprintf(&sb, "*Input:* %s\n*Output:* %s\n\n", s.Input, s.Output)
	fmt.Fprintf(&sb, "Files: %d", s.Files)
	if s.SkippedDuplicates > 0 {
		fmt.Fprintf(&sb, " (%d duplicate exports skipped)", s.SkippedDuplicates)
	}
	fmt.Fprintf(&sb, "\nSessions: %d\nRecords: %d\n", s.Sessions, s.Records)

	if s.Failures > 0 {
		fmt.Fprintf(&sb, "Failures: %d", s.Failures)
	} else {
		sb.WriteString("_No failures._")
	}
	return sb.String()
}
