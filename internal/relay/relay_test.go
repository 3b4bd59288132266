package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCallMeBotNotify(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"phone":  r.URL.Query().Get("phone"),
			"text":   r.URL.Query().Get("text"),
			"apikey": r.URL.Query().Get("apikey"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewCallMeBotNotifier("9647712345678", "key123", WithCallMeBotBase(server.URL))
	if err != nil {
		t.Fatalf("NewCallMeBotNotifier failed: %v", err)
	}

	if err := notifier.Notify(context.Background(), "حجز جديد 📅"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if gotQuery["phone"] != "9647712345678" {
		t.Errorf("unexpected phone %q", gotQuery["phone"])
	}
	if gotQuery["text"] != "حجز جديد 📅" {
		t.Errorf("unexpected text %q", gotQuery["text"])
	}
	if gotQuery["apikey"] != "key123" {
		t.Errorf("unexpected apikey %q", gotQuery["apikey"])
	}
}

func TestCallMeBotNotifyGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid apikey", http.StatusForbidden)
	}))
	defer server.Close()

	notifier, err := NewCallMeBotNotifier("9647712345678", "bad", WithCallMeBotBase(server.URL))
	if err != nil {
		t.Fatalf("NewCallMeBotNotifier failed: %v", err)
	}
	if err := notifier.Notify(context.Background(), "hi"); err == nil {
		t.Error("expected error on gateway failure")
	}
}

func TestCallMeBotValidation(t *testing.T) {
	if _, err := NewCallMeBotNotifier("", "key"); err == nil {
		t.Error("expected error for missing phone")
	}
	if _, err := NewCallMeBotNotifier("964", ""); err == nil {
		t.Error("expected error for missing apikey")
	}
}

func TestNewTwilioNotifierValidation(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioNotifier(); err == nil {
		t.Error("expected error with no credentials")
	}
	if _, err := NewTwilioNotifier(
		WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("whatsapp:+1415"),
	); err == nil {
		t.Error("expected error with no operator number")
	}
	if _, err := NewTwilioNotifier(
		WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("whatsapp:+1415"), WithToWhats("+9647712345678"),
	); err != nil {
		t.Errorf("expected notifier to construct, got %v", err)
	}
}

func TestNopNotifier(t *testing.T) {
	if err := (NopNotifier{}).Notify(context.Background(), "anything"); err != nil {
		t.Errorf("NopNotifier must never fail, got %v", err)
	}
}

func TestMockNotifier(t *testing.T) {
	mock := &MockNotifier{}
	if err := mock.Notify(context.Background(), "first"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if err := mock.Notify(context.Background(), "second"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 2 || sent[0] != "first" || sent[1] != "second" {
		t.Errorf("unexpected recorded notifications: %v", sent)
	}
}
