package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/nlu"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/session"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/util"
)

// DefaultReminderDelay is how long an unfinished booking waits before the
// user gets a nudge.
const DefaultReminderDelay = 1800 * time.Second

// BookingStore persists completed bookings.
type BookingStore interface {
	SaveBooking(ctx context.Context, booking models.Booking) error
}

// Notifier forwards operator notifications, typically over WhatsApp.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// ReminderSender delivers a delayed nudge to a user who stalled mid-booking.
type ReminderSender func(ctx context.Context, userID, text string)

// BookingMachine drives the collect-name, collect-phone booking conversation.
// It owns no session state itself; everything conversational lives on the
// session so an expired session cleanly abandons the flow.
type BookingMachine struct {
	timer         Timer
	store         BookingStore
	notifier      Notifier
	remind        ReminderSender
	reminderDelay time.Duration

	mu        sync.Mutex
	reminders map[string]string
}

// BookingOption configures a BookingMachine.
type BookingOption func(*BookingMachine)

// WithReminderDelay overrides the stalled-booking nudge delay.
func WithReminderDelay(delay time.Duration) BookingOption {
	return func(m *BookingMachine) {
		if delay > 0 {
			m.reminderDelay = delay
		}
	}
}

// NewBookingMachine creates a booking machine. remind may be nil to disable
// stalled-booking nudges.
func NewBookingMachine(timer Timer, store BookingStore, notifier Notifier, remind ReminderSender, opts ...BookingOption) *BookingMachine {
	m := &BookingMachine{
		timer:         timer,
		store:         store,
		notifier:      notifier,
		remind:        remind,
		reminderDelay: DefaultReminderDelay,
		reminders:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the booking flow for a session. The service is taken from the
// triggering message, falling back to the session's sticky topic.
func (m *BookingMachine) Start(ctx context.Context, sess *session.Session, text string) string {
	service := nlu.ClassifyService(text)
	if service == models.ServiceUnspecified {
		service = sess.Service()
	}
	sess.SetService(service)
	sess.UpdateDraft(func(d *models.BookingDraft) {
		d.Reset()
		d.Service = service
	})
	sess.SetBookingState(models.BookingAwaitingName)

	m.scheduleReminder(ctx, sess)
	slog.Info("BookingMachine.Start", "userID", sess.UserID, "service", service)
	return "تمام! حتى اكمل الحجز، دزلي اسمك الكامل 😊"
}

// Advance feeds one user turn into an active booking flow and returns the
// next prompt. Interruption utterances abandon the flow.
func (m *BookingMachine) Advance(ctx context.Context, sess *session.Session, text string) string {
	if nlu.IsInterruption(text) {
		m.abandon(sess)
		slog.Info("BookingMachine.Advance interrupted", "userID", sess.UserID)
		return "اوكي، خذ راحتك 😊 اذا تحب تكمل الحجز بعدين، دزلي كلمة حجز"
	}

	switch sess.BookingState() {
	case models.BookingAwaitingName:
		return m.collectName(sess, text)
	case models.BookingAwaitingPhone:
		return m.collectPhone(ctx, sess, text)
	default:
		// Not in a collecting state; nothing to advance.
		return ""
	}
}

func (m *BookingMachine) collectName(sess *session.Session, text string) string {
	name, ok := nlu.ExtractName(text)
	if !ok {
		return "هذا يبين رقم مو اسم 😅 دزلي اسمك الكامل حتى اكمل الحجز"
	}
	sess.UpdateDraft(func(d *models.BookingDraft) {
		d.Name = name
	})
	sess.SetBookingState(models.BookingAwaitingPhone)
	return fmt.Sprintf("شكراً %s! هسة دزلي رقم هاتفك (لازم يبدي بـ 07 ويكون 11 رقم)", name)
}

func (m *BookingMachine) collectPhone(ctx context.Context, sess *session.Session, text string) string {
	phone, ok := nlu.ExtractPhone(text)
	if !ok {
		return "الرقم لازم يكون 11 رقم ويبدي بـ 07، مثل: 07712345678\nحاول مرة ثانية 🙏"
	}

	sess.SetBookingState(models.BookingConfirmed)

	draft := sess.Draft()
	booking := models.Booking{
		ID:        util.GenerateBookingID(),
		UserID:    sess.UserID,
		Name:      draft.Name,
		Phone:     phone,
		Service:   draft.Service,
		CreatedAt: time.Now(),
	}

	if err := m.store.SaveBooking(ctx, booking); err != nil {
		// The confirmation still goes out; the operator notification carries
		// the details either way.
		slog.Error("BookingMachine.collectPhone failed to save booking", "error", err, "userID", sess.UserID)
	}

	if m.notifier != nil {
		notice := fmt.Sprintf("حجز جديد 📅 الاسم: %s | الرقم: %s | الخدمة: %s",
			booking.Name, booking.Phone, nlu.ServiceDisplayName(booking.Service))
		if err := m.notifier.Notify(ctx, notice); err != nil {
			slog.Error("BookingMachine.collectPhone operator notify failed", "error", err, "bookingID", booking.ID)
		}
	}

	m.cancelReminder(sess.UserID)
	// Dispatch done; the flow is over. Reset so the next "حجز" starts clean.
	sess.SetBookingState(models.BookingIdle)
	sess.UpdateDraft(func(d *models.BookingDraft) {
		d.Reset()
	})

	slog.Info("BookingMachine booking confirmed", "bookingID", booking.ID, "userID", sess.UserID, "service", booking.Service)
	return fmt.Sprintf("تم الحجز ✅\nالاسم: %s\nالرقم: %s\nالخدمة: %s\nراح نتواصل وياك لتأكيد الموعد، شكراً لثقتك 🙏",
		booking.Name, booking.Phone, nlu.ServiceDisplayName(booking.Service))
}

// abandon resets the booking flow back to idle, dropping the draft.
func (m *BookingMachine) abandon(sess *session.Session) {
	m.cancelReminder(sess.UserID)
	sess.SetBookingState(models.BookingIdle)
	sess.UpdateDraft(func(d *models.BookingDraft) {
		d.Reset()
	})
}

// scheduleReminder arms a nudge that fires if the booking is still unfinished
// after the reminder delay.
func (m *BookingMachine) scheduleReminder(ctx context.Context, sess *session.Session) {
	if m.remind == nil || m.timer == nil {
		return
	}
	m.cancelReminder(sess.UserID)

	id, err := m.timer.ScheduleAfter(m.reminderDelay, func() {
		state := sess.BookingState()
		if state != models.BookingAwaitingName && state != models.BookingAwaitingPhone {
			return
		}
		slog.Info("BookingMachine reminder firing", "userID", sess.UserID, "state", state)
		m.remind(ctx, sess.UserID, "مبين انشغلت 😊 اذا بعدك تحب تكمل الحجز، دزلي المعلومات الناقصة وخلي نكملها سوا")
	})
	if err != nil {
		slog.Error("BookingMachine.scheduleReminder failed", "error", err, "userID", sess.UserID)
		return
	}

	m.mu.Lock()
	m.reminders[sess.UserID] = id
	m.mu.Unlock()
}

func (m *BookingMachine) cancelReminder(userID string) {
	m.mu.Lock()
	id, ok := m.reminders[userID]
	if ok {
		delete(m.reminders, userID)
	}
	m.mu.Unlock()

	if ok && m.timer != nil {
		if err := m.timer.Cancel(id); err != nil {
			slog.Warn("BookingMachine.cancelReminder failed", "error", err, "userID", userID)
		}
	}
}
