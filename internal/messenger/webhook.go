package messenger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookHandler handles Meta webhook verification and inbound events.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	onMessage   func(msg ParsedMessage)
}

// NewWebhookHandler creates a webhook handler. onMessage is called once per
// parsed inbound message. appSecret may be empty, in which case signature
// verification is skipped.
func NewWebhookHandler(verifyToken, appSecret string, onMessage func(ParsedMessage)) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		onMessage:   onMessage,
	}
}

// HandleVerification handles the GET webhook verification challenge.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		slog.Info("Webhook verification succeeded")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	slog.Warn("Webhook verification rejected", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound handles POST webhook events. Meta retries deliveries that do
// not get a fast 200, so the event is acknowledged before any message is
// processed; parse failures are logged but still acknowledged.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !VerifySignature(h.appSecret, body, signature) {
			slog.Warn("Webhook signature verification failed")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "EVENT_RECEIVED")

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		slog.Error("Webhook event unmarshal failed", "error", err)
		return
	}

	for _, msg := range ParseWebhookEvent(event) {
		if h.onMessage != nil {
			h.onMessage(msg)
		}
	}
}

// ParseWebhookEvent extracts inbound user messages from a webhook event.
// Delivery receipts, read receipts and echoes carry no message body and are
// dropped.
func ParseWebhookEvent(event WebhookEvent) []ParsedMessage {
	var messages []ParsedMessage
	for _, entry := range event.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil {
				continue
			}
			messages = append(messages, ParsedMessage{
				SenderID:      m.Sender.ID,
				Text:          m.Message.Text,
				MessageID:     m.Message.MID,
				HasAttachment: len(m.Message.Attachments) > 0,
				Time:          time.UnixMilli(m.Timestamp),
			})
		}
	}
	return messages
}

// VerifySignature verifies the X-Hub-Signature-256 header against the raw
// request body.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}

	// Signature format: "sha256=<hex>"
	const prefix = "sha256="
	if len(signature) <= len(prefix) {
		return false
	}
	sigHex := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sigHex))
}
