package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// Sender delivers outbound messages and sender actions to a user.
type Sender interface {
	SendMessage(ctx context.Context, recipientID, text string) error
	SendAction(ctx context.Context, recipientID, action string) error
}

// Client sends messages via the Meta Graph API.
type Client struct {
	pageAccessToken string
	graphAPIBase    string
	httpClient      *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGraphAPIBase overrides the Graph API base URL, mainly for tests.
func WithGraphAPIBase(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.graphAPIBase = base
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a Graph API client for the given page access token.
func NewClient(pageAccessToken string, opts ...ClientOption) *Client {
	c := &Client{
		pageAccessToken: pageAccessToken,
		graphAPIBase:    defaultGraphAPIBase,
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage sends a plain text message to the given recipient.
func (c *Client) SendMessage(ctx context.Context, recipientID, text string) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}
	if text == "" {
		return models.ErrEmptyBody
	}
	req := SendRequest{
		Recipient: Participant{ID: recipientID},
		Message:   &SendMessage{Text: text},
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		slog.Error("Messenger Client.SendMessage failed", "error", err, "recipientID", recipientID)
		return err
	}
	slog.Debug("Messenger Client.SendMessage succeeded", "recipientID", recipientID, "messageID", resp.MessageID)
	return nil
}

// SendAction sends a sender action such as typing_on or typing_off.
func (c *Client) SendAction(ctx context.Context, recipientID, action string) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}
	req := SendRequest{
		Recipient:    Participant{ID: recipientID},
		SenderAction: action,
	}
	if _, err := c.send(ctx, req); err != nil {
		slog.Debug("Messenger Client.SendAction failed", "error", err, "recipientID", recipientID, "action", action)
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("messenger: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphAPIBase, c.pageAccessToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("messenger: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("messenger: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("messenger: read response: %w", err)
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("messenger: unmarshal response: %w", err)
	}

	if sendResp.Error != nil {
		return &sendResp, fmt.Errorf("messenger: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return &sendResp, fmt.Errorf("messenger: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return &sendResp, nil
}

// MockSender is a mock implementation of Sender for testing.
type MockSender struct {
	mu       sync.Mutex
	Messages []MockMessage
	Actions  []MockMessage
	Err      error
}

// MockMessage records one mock send.
type MockMessage struct {
	RecipientID string
	Body        string
}

// SendMessage records the message and returns the configured error.
func (m *MockSender) SendMessage(_ context.Context, recipientID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, MockMessage{RecipientID: recipientID, Body: text})
	return nil
}

// SendAction records the action and returns the configured error.
func (m *MockSender) SendAction(_ context.Context, recipientID, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Actions = append(m.Actions, MockMessage{RecipientID: recipientID, Body: action})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockSender) Sent() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.Messages...)
}

// SentActions returns a copy of the recorded sender actions.
func (m *MockSender) SentActions() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.Actions...)
}
