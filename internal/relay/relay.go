// Package relay forwards operator notifications (new bookings, daily
// summaries) to the clinic staff over WhatsApp. Delivery is fire and forget:
// a relay failure is logged but never blocks the patient-facing reply.
package relay

import (
	"context"
	"log/slog"
	"sync"
)

// Notifier delivers one operator notification.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NopNotifier discards notifications. Used when no relay provider is
// configured.
type NopNotifier struct{}

// Notify logs and drops the notification.
func (NopNotifier) Notify(_ context.Context, text string) error {
	slog.Debug("NopNotifier dropping notification", "length", len(text))
	return nil
}

// MockNotifier records notifications for tests.
type MockNotifier struct {
	mu    sync.Mutex
	Texts []string
	Err   error
}

// Notify records the text and returns the configured error.
func (m *MockNotifier) Notify(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Texts = append(m.Texts, text)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (m *MockNotifier) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Texts...)
}
