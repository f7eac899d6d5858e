package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultURLFormat = "https://graph.facebook.com/v17.0/%s/messages"

// DefaultURL is the Cloud API messages endpoint for a business phone number.
func DefaultURL(phoneNumberID string) string {
	return fmt.Sprintf(defaultURLFormat, phoneNumberID)
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	url    string
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		http: resty.New().
			SetTimeout(15*time.Second).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json"),
		logger: logger,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type typingIndicator struct {
	Type string `json:"type"`
}

type readReceipt struct {
	MessagingProduct string          `json:"messaging_product"`
	Status           string          `json:"status"`
	MessageID        string          `json:"message_id"`
	TypingIndicator  typingIndicator `json:"typing_indicator"`
}

// SendText sends a text message to a phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	err := c.post(ctx, textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	c.logger.Info("message sent", "to", to)
	return nil
}

// SendTyping marks messageID as read and shows a typing indicator.
func (c *Client) SendTyping(ctx context.Context, messageID string) error {
	err := c.post(ctx, readReceipt{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
		TypingIndicator:  typingIndicator{Type: "text"},
	})
	if err != nil {
		return fmt.Errorf("send typing indicator: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
