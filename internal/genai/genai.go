// Package genai wraps the OpenAI chat completions API for reply generation.
package genai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// Errors returned by the client.
var (
	ErrNoAPIKey          = errors.New("OpenAI API key is empty")
	ErrNoChoicesReturned = errors.New("no choices returned from completion")
)

const (
	// DefaultModel is the chat model used for reply generation.
	DefaultModel = openai.ChatModelGPT4_1Mini

	// DefaultMaxTokens bounds reply length; chat replies are short by design
	// of the persona prompt, the cap is a safety net.
	DefaultMaxTokens = 200

	// requestTimeout bounds a single completion call.
	requestTimeout = 10 * time.Second
)

// chatService is the slice of the OpenAI client the generator uses, split out
// so tests can substitute a mock.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client generates chat replies via the OpenAI API.
type Client struct {
	chat      chatService
	model     openai.ChatModel
	maxTokens int64
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens overrides the reply token cap.
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// withChatService substitutes the underlying chat API, for tests.
func withChatService(chat chatService) Option {
	return func(c *Client) {
		c.chat = chat
	}
}

// NewClient creates a generation client with the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.chat == nil {
		if apiKey == "" {
			return nil, ErrNoAPIKey
		}
		api := openai.NewClient(option.WithAPIKey(apiKey))
		c.chat = &api.Chat.Completions
	}

	slog.Info("GenAI client created", "model", c.model, "maxTokens", c.maxTokens)
	return c, nil
}

// Generate produces a single reply from a system prompt and one user message.
func (c *Client) Generate(ctx context.Context, systemPrompt, userText string) (string, error) {
	return c.GenerateWithHistory(ctx, systemPrompt, nil, userText)
}

// GenerateWithHistory produces a reply given the bounded conversation history
// and the latest user turn. One retry is attempted on transient failure.
func (c *Client) GenerateWithHistory(ctx context.Context, systemPrompt string, history []models.ChatTurn, userText string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, turn := range history {
		switch turn.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userText))

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: openai.Int(c.maxTokens),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		reply, err := c.complete(ctx, params)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		slog.Warn("GenAI completion attempt failed", "attempt", attempt+1, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	completion, err := c.chat.New(callCtx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}

	reply := completion.Choices[0].Message.Content
	slog.Debug("GenAI completion succeeded", "model", c.model, "elapsed", time.Since(start), "chars", len(reply))
	return reply, nil
}
