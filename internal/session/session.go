// Package session tracks per-user conversation state: buffered message
// fragments awaiting a debounced reply, bounded chat history, booking flow
// progress and activity timestamps.
package session

import (
	"sync"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// Session holds all conversational state for a single user. Two locks guard
// it: mu protects the mutable fields, while turnMu serializes whole reply
// turns so a firing debounce timer and a concurrent sweep or later turn never
// interleave.
type Session struct {
	UserID string

	mu           sync.Mutex
	pending      []string
	turnVersion  uint64
	lastActivity time.Time
	history      []models.ChatTurn
	bookingState models.BookingState
	draft        models.BookingDraft
	service      models.Service
	lastReply    string
	timer        *time.Timer

	turnMu sync.Mutex
}

// NewSession returns a fresh session for the given user.
func NewSession(userID string) *Session {
	return &Session{
		UserID:       userID,
		lastActivity: time.Now(),
		bookingState: models.BookingIdle,
		service:      models.ServiceUnspecified,
	}
}

// Append buffers a message fragment, bumps the turn version and refreshes the
// activity timestamp. It returns the new version, which the debounce timer
// uses to detect that a newer fragment arrived while it was waiting.
func (s *Session) Append(text string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, text)
	s.turnVersion++
	s.lastActivity = time.Now()
	return s.turnVersion
}

// Version returns the current turn version.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnVersion
}

// Drain removes and returns all buffered fragments if version still matches
// the current turn version. A mismatch means another fragment arrived after
// the timer was armed; the caller must abandon the turn.
func (s *Session) Drain(version uint64) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version != s.turnVersion || len(s.pending) == 0 {
		return nil, false
	}
	fragments := s.pending
	s.pending = nil
	return fragments, true
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the most recent user or bot activity.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// ArmTurn buffers a fragment, bumps the turn version and swaps in a new
// debounce timer, all in one critical section. Splitting the append from the
// timer swap would let two concurrent fragments interleave so that the older
// arm stops the timer bound to the newest version, leaving the buffer stuck
// with no timer to drain it. fire receives the version the timer was armed
// for; ArmTurn returns that same version.
func (s *Session) ArmTurn(text string, delay time.Duration, fire func(version uint64)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, text)
	s.turnVersion++
	s.lastActivity = time.Now()
	version := s.turnVersion
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, func() { fire(version) })
	return version
}

// StopTimer cancels any armed debounce timer.
func (s *Session) StopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// AddHistory appends a chat turn, evicting the oldest turn once the bounded
// window is full.
func (s *Session) AddHistory(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, models.ChatTurn{Role: role, Content: content})
	if len(s.history) > models.MaxHistoryTurns {
		s.history = s.history[len(s.history)-models.MaxHistoryTurns:]
	}
}

// History returns a copy of the bounded chat history, oldest first.
func (s *Session) History() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

// BookingState returns the session's booking flow state.
func (s *Session) BookingState() models.BookingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookingState
}

// SetBookingState sets the session's booking flow state.
func (s *Session) SetBookingState(state models.BookingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookingState = state
}

// Draft returns a copy of the in-progress booking draft.
func (s *Session) Draft() models.BookingDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// UpdateDraft applies fn to the in-progress booking draft under the lock.
func (s *Session) UpdateDraft(fn func(*models.BookingDraft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.draft)
}

// Service returns the most recently discussed clinic service.
func (s *Session) Service() models.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.service
}

// SetService records the most recently discussed clinic service. The
// unspecified sentinel is ignored so an earlier concrete topic stays sticky.
func (s *Session) SetService(service models.Service) {
	if service == models.ServiceUnspecified {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.service = service
}

// LastReply returns the last reply sent to this user.
func (s *Session) LastReply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReply
}

// SetLastReply records the last reply sent to this user.
func (s *Session) SetLastReply(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReply = reply
}

// LockTurn acquires the turn lock, serializing reply turns for this session.
func (s *Session) LockTurn() {
	s.turnMu.Lock()
}

// UnlockTurn releases the turn lock.
func (s *Session) UnlockTurn() {
	s.turnMu.Unlock()
}
