// Package gemini calls generateContent through the genai SDK, against either
// the Gemini API (API key) or a deployed Vertex AI endpoint (ADC).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/auth"
	"google.golang.org/genai"
)

const vertexAPIVersion = "v1"

type Client struct {
	genai *genai.Client
	model string
}

type options struct {
	baseURL     string
	credentials *auth.Credentials
}

// Option adjusts client construction.
type Option func(*options)

// WithBaseURL sends requests to url instead of the public endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithCredentials overrides Application Default Credentials for Vertex AI.
func WithCredentials(creds *auth.Credentials) Option {
	return func(o *options) { o.credentials = creds }
}

// NewClient returns a client for a public model authenticated by API key.
func NewClient(ctx context.Context, apiKey, model string, opts ...Option) (*Client, error) {
	o := applyOptions(opts)
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: o.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{genai: gc, model: model}, nil
}

// NewVertexClient returns a client for a deployed Vertex AI endpoint.
// Credentials come from the environment unless WithCredentials is given.
func NewVertexClient(ctx context.Context, project, location, endpoint string, opts ...Option) (*Client, error) {
	o := applyOptions(opts)
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     project,
		Location:    location,
		Credentials: o.credentials,
		HTTPOptions: genai.HTTPOptions{BaseURL: o.baseURL, APIVersion: vertexAPIVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("vertex client: %w", err)
	}
	return &Client{genai: gc, model: EndpointName(project, location, endpoint)}, nil
}

// EndpointName is the resource name of a Vertex AI endpoint.
func EndpointName(project, location, endpoint string) string {
	return fmt.Sprintf("projects/%s/locations/%s/endpoints/%s", project, location, endpoint)
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Part struct {
	Text string
}

type Content struct {
	Role  string
	Parts []Part
}

// TextContent builds a single-part content.
func TextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

type GenerationConfig struct {
	Temperature        *float64
	TopP               *float64
	MaxOutputTokens    int
	ResponseMIMEType   string
	ResponseModalities []string
}

type SafetySetting struct {
	Category  string
	Threshold string
}

type Request struct {
	Contents          []Content
	SystemInstruction *Content
	GenerationConfig  *GenerationConfig
	SafetySettings    []SafetySetting
}

// GenerateContent sends req and returns the text of the first candidate.
func (c *Client) GenerateContent(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, len(req.Contents))
	for i, content := range req.Contents {
		contents[i] = toContent(content)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, toConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("empty response content")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response content (finish reason %s)", cand.FinishReason)
	}
	return sb.String(), nil
}

// Complete sends a single user prompt and asks for a JSON response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.GenerateContent(ctx, Request{
		Contents:         []Content{TextContent("user", prompt)},
		GenerationConfig: &GenerationConfig{ResponseMIMEType: "application/json"},
	})
}

func toContent(c Content) *genai.Content {
	parts := make([]*genai.Part, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = &genai.Part{Text: p.Text}
	}
	return &genai.Content{Role: c.Role, Parts: parts}
}

func toConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != nil {
		cfg.SystemInstruction = toContent(*req.SystemInstruction)
	}
	for _, s := range req.SafetySettings {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	if gc := req.GenerationConfig; gc != nil {
		if gc.Temperature != nil {
			cfg.Temperature = genai.Ptr(float32(*gc.Temperature))
		}
		if gc.TopP != nil {
			cfg.TopP = genai.Ptr(float32(*gc.TopP))
		}
		cfg.MaxOutputTokens = int32(gc.MaxOutputTokens)
		cfg.ResponseMIMEType = gc.ResponseMIMEType
		cfg.ResponseModalities = gc.ResponseModalities
	}
	return cfg
}
