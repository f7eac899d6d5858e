// Package reply answers inbound chat messages with the fine-tuned model while
// keeping a bounded history per participant.
package reply

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/doppel/internal/gemini"
	"github.com/MikeSquared-Agency/doppel/internal/hermes"
	"github.com/MikeSquared-Agency/doppel/internal/history"
	"github.com/MikeSquared-Agency/doppel/internal/observability"
	"github.com/MikeSquared-Agency/doppel/internal/prompt"
)

// FallbackText is sent when generation fails.
const FallbackText = "Sorry, I'm having trouble generating a response right now. Please try again later."

const (
	temperature     = 1.0
	topP            = 0.95
	maxOutputTokens = 8192
)

var harmCategories = []string{
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_HARASSMENT",
}

// Model generates a reply for a request.
type Model interface {
	GenerateContent(ctx context.Context, req gemini.Request) (string, error)
}

// Publisher emits events. *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

type Service struct {
	model   Model
	history *history.Cache
	system  string
	metrics *observability.Metrics
	events  Publisher
	logger  *slog.Logger
}

func NewService(model Model, cache *history.Cache, botName, persona string, logger *slog.Logger) *Service {
	return &Service{
		model:   model,
		history: cache,
		system:  prompt.SystemInstruction(botName, persona),
		logger:  logger,
	}
}

func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithEvents(p Publisher) *Service {
	s.events = p
	return s
}

// Reply returns the model's answer to text from participant, or FallbackText
// if generation fails. History is only updated on success.
func (s *Service) Reply(ctx context.Context, participant, text string) string {
	start := time.Now()
	out, err := s.history.Exchange(ctx, participant, text, func(ctx context.Context, prior []history.Entry) (string, error) {
		return s.model.GenerateContent(ctx, s.buildRequest(prior, text))
	})
	elapsed := time.Since(start)

	fallback := err != nil
	if fallback {
		s.logger.Error("generate reply", "participant", participant, "error", err)
		out = FallbackText
	} else {
		s.logger.Info("reply generated", "participant", participant, "duration_ms", elapsed.Milliseconds())
	}

	if s.metrics != nil {
		outcome := "ok"
		if fallback {
			outcome = "fallback"
		} else {
			s.metrics.ObserveGeneration(elapsed)
		}
		s.metrics.Replies.WithLabelValues(outcome).Inc()
		s.metrics.ActiveParticipants.Set(float64(s.history.Participants()))
	}

	if s.events != nil {
		ev := hermes.ReplySent{Participant: participant, Fallback: fallback, LatencyMS: elapsed.Milliseconds()}
		if err := s.events.Publish(hermes.SubjectReplySent, ev); err != nil {
			s.logger.Warn("publish reply event", "error", err)
		}
	}
	return out
}

func (s *Service) buildRequest(prior []history.Entry, text string) gemini.Request {
	contents := make([]gemini.Content, 0, len(prior)+1)
	for _, e := range prior {
		contents = append(contents, gemini.TextContent(e.Role, e.Text))
	}
	contents = append(contents, gemini.TextContent(history.RoleUser, text))

	temp, p := temperature, topP
	safety := make([]gemini.SafetySetting, len(harmCategories))
	for i, c := range harmCategories {
		safety[i] = gemini.SafetySetting{Category: c, Threshold: "OFF"}
	}
	system := gemini.Content{Parts: []gemini.Part{{Text: s.system}}}

	return gemini.Request{
		Contents:          contents,
		SystemInstruction: &system,
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:        &temp,
			TopP:               &p,
			MaxOutputTokens:    maxOutputTokens,
			ResponseModalities: []string{"TEXT"},
		},
		SafetySettings: safety,
	}
}
