// Package openaicompat completes prompts against any OpenAI-compatible chat
// completions endpoint.
package openaicompat

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type Client struct {
	model  string
	client *openai.Client
}

// NewClient creates a client. An empty baseURL uses the OpenAI API.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Complete sends prompt as a single user message and requests a JSON object.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response content")
	}
	return resp.Choices[0].Message.Content, nil
}
