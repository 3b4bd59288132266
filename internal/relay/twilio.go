package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOpts holds configuration options for the Twilio WhatsApp notifier.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
	ToWhats    string
}

// TwilioOption defines a configuration option for the Twilio notifier.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromWhats sets the Twilio WhatsApp sender number.
func WithFromWhats(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromWhats = from }
}

// WithToWhats sets the operator WhatsApp number notifications go to.
func WithToWhats(to string) TwilioOption {
	return func(o *TwilioOpts) { o.ToWhats = to }
}

// TwilioNotifier delivers operator notifications over Twilio's WhatsApp API.
type TwilioNotifier struct {
	client    *twilio.RestClient
	fromWhats string // "whatsapp:+1234567890" format
	toWhats   string
}

// NewTwilioNotifier creates a Twilio-backed notifier. Missing options fall
// back to the TWILIO_* environment variables.
func NewTwilioNotifier(opts ...TwilioOption) (*TwilioNotifier, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}
	if cfg.ToWhats == "" {
		return nil, fmt.Errorf("operator toWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioNotifier{
		client:    client,
		fromWhats: cfg.FromWhats,
		toWhats:   cfg.ToWhats,
	}, nil
}

// Notify sends one WhatsApp message to the operator number.
func (n *TwilioNotifier) Notify(ctx context.Context, text string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + n.toWhats)
	params.SetFrom(n.fromWhats)
	params.SetBody(text)

	_, err := n.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioNotifier.Notify failed", "to", n.toWhats, "error", err)
		return fmt.Errorf("failed to send notification to %s: %w", n.toWhats, err)
	}

	slog.Debug("TwilioNotifier.Notify delivered", "to", n.toWhats)
	return nil
}
