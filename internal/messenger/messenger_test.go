package messenger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSendMessage(t *testing.T) {
	var gotPath string
	var gotBody SendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(SendResponse{RecipientID: "user1", MessageID: "mid.1"})
	}))
	defer server.Close()

	client := NewClient("token", WithGraphAPIBase(server.URL))
	if err := client.SendMessage(context.Background(), "user1", "هلو"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if gotPath != "/me/messages" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody.Recipient.ID != "user1" || gotBody.Message == nil || gotBody.Message.Text != "هلو" {
		t.Errorf("unexpected payload: %+v", gotBody)
	}
}

func TestClientSendMessageValidation(t *testing.T) {
	client := NewClient("token")
	if err := client.SendMessage(context.Background(), "", "hi"); err == nil {
		t.Error("expected error for empty recipient")
	}
	if err := client.SendMessage(context.Background(), "user1", ""); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestClientSendMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SendResponse{
			Error: &SendError{Message: "Invalid OAuth access token", Code: 190},
		})
	}))
	defer server.Close()

	client := NewClient("bad-token", WithGraphAPIBase(server.URL))
	err := client.SendMessage(context.Background(), "user1", "هلو")
	if err == nil || !strings.Contains(err.Error(), "190") {
		t.Errorf("expected API error with code, got %v", err)
	}
}

func TestClientSendAction(t *testing.T) {
	var gotBody SendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(SendResponse{})
	}))
	defer server.Close()

	client := NewClient("token", WithGraphAPIBase(server.URL))
	if err := client.SendAction(context.Background(), "user1", ActionTypingOn); err != nil {
		t.Fatalf("SendAction failed: %v", err)
	}
	if gotBody.SenderAction != ActionTypingOn {
		t.Errorf("expected typing_on action, got %q", gotBody.SenderAction)
	}
	if gotBody.Message != nil {
		t.Error("expected no message body on sender action")
	}
}

func TestHandleVerification(t *testing.T) {
	handler := NewWebhookHandler("secret-token", "", nil)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	handler.HandleVerification(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("expected challenge echoed, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	handler.HandleVerification(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong token, got %d", rec.Code)
	}
}

const sampleEvent = `{
	"object": "page",
	"entry": [{
		"id": "page1",
		"time": 1700000000000,
		"messaging": [{
			"sender": {"id": "user1"},
			"recipient": {"id": "page1"},
			"timestamp": 1700000000000,
			"message": {"mid": "mid.1", "text": "هلو"}
		}]
	}]
}`

func TestHandleInboundAcksAndDispatches(t *testing.T) {
	var got []ParsedMessage
	handler := NewWebhookHandler("vt", "", func(msg ParsedMessage) {
		got = append(got, msg)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleEvent))
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "EVENT_RECEIVED" {
		t.Errorf("expected EVENT_RECEIVED ack, got %q", rec.Body.String())
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 dispatched message, got %d", len(got))
	}
	if got[0].SenderID != "user1" || got[0].Text != "هلو" || got[0].MessageID != "mid.1" {
		t.Errorf("unexpected parsed message: %+v", got[0])
	}
}

func TestHandleInboundMalformedStillAcked(t *testing.T) {
	handler := NewWebhookHandler("vt", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected malformed event still acked with 200, got %d", rec.Code)
	}
}

func TestHandleInboundSignature(t *testing.T) {
	appSecret := "app-secret"
	handler := NewWebhookHandler("vt", appSecret, nil)

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(sampleEvent))
	goodSig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleEvent))
	req.Header.Set("X-Hub-Signature-256", goodSig)
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for valid signature, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(sampleEvent))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec = httptest.NewRecorder()
	handler.HandleInbound(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestParseWebhookEventSkipsNonMessages(t *testing.T) {
	event := WebhookEvent{
		Object: "page",
		Entry: []Entry{{
			Messaging: []MessagingDetail{
				{Sender: Participant{ID: "user1"}}, // delivery receipt, no message
				{Sender: Participant{ID: "user2"}, Message: &InboundMessage{MID: "mid.2", Text: "hi"}},
			},
		}},
	}

	messages := ParseWebhookEvent(event)
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].SenderID != "user2" {
		t.Errorf("unexpected sender %q", messages[0].SenderID)
	}
}

func TestParseWebhookEventAttachment(t *testing.T) {
	event := WebhookEvent{
		Entry: []Entry{{
			Messaging: []MessagingDetail{{
				Sender:  Participant{ID: "user1"},
				Message: &InboundMessage{MID: "mid.3", Attachments: []Attachment{{Type: "image"}}},
			}},
		}},
	}

	messages := ParseWebhookEvent(event)
	if len(messages) != 1 || !messages[0].HasAttachment {
		t.Fatalf("expected attachment message, got %+v", messages)
	}
}

func TestMockSender(t *testing.T) {
	mock := &MockSender{}
	if err := mock.SendMessage(context.Background(), "user1", "hi"); err != nil {
		t.Fatalf("mock send failed: %v", err)
	}
	if err := mock.SendAction(context.Background(), "user1", ActionTypingOn); err != nil {
		t.Fatalf("mock action failed: %v", err)
	}
	if len(mock.Sent()) != 1 || len(mock.SentActions()) != 1 {
		t.Error("expected one message and one action recorded")
	}
}
