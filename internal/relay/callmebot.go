package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultCallMeBotBase = "https://api.callmebot.com/whatsapp.php"
	callMeBotTimeout     = 15 * time.Second
)

// CallMeBotNotifier delivers operator notifications through the CallMeBot
// WhatsApp gateway, a zero-setup option for a single operator phone.
type CallMeBotNotifier struct {
	phone      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// CallMeBotOption configures a CallMeBotNotifier.
type CallMeBotOption func(*CallMeBotNotifier)

// WithCallMeBotBase overrides the gateway URL, mainly for tests.
func WithCallMeBotBase(base string) CallMeBotOption {
	return func(n *CallMeBotNotifier) {
		if base != "" {
			n.baseURL = base
		}
	}
}

// NewCallMeBotNotifier creates a notifier for the given operator phone and
// CallMeBot API key.
func NewCallMeBotNotifier(phone, apiKey string, opts ...CallMeBotOption) (*CallMeBotNotifier, error) {
	if phone == "" {
		return nil, fmt.Errorf("operator phone must be provided")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("CallMeBot API key must be provided")
	}
	n := &CallMeBotNotifier{
		phone:      phone,
		apiKey:     apiKey,
		baseURL:    defaultCallMeBotBase,
		httpClient: &http.Client{Timeout: callMeBotTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify sends one WhatsApp message to the operator phone.
func (n *CallMeBotNotifier) Notify(ctx context.Context, text string) error {
	params := url.Values{}
	params.Set("phone", n.phone)
	params.Set("text", text)
	params.Set("apikey", n.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("callmebot: create request: %w", err)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		slog.Error("CallMeBotNotifier.Notify request failed", "error", err)
		return fmt.Errorf("callmebot: send notification: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		slog.Error("CallMeBotNotifier.Notify gateway error", "status", resp.StatusCode, "body", strings.TrimSpace(string(body)))
		return fmt.Errorf("callmebot: unexpected status %d", resp.StatusCode)
	}

	slog.Debug("CallMeBotNotifier.Notify delivered", "length", len(text))
	return nil
}
