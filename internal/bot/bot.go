// Package bot wires inbound Messenger events through the session debouncer
// and the reply router, and delivers the composed replies.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/flow"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/messenger"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/session"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/store"
)

// AttachmentReply is the canned answer for messages that carry only media.
const AttachmentReply = "شكراً على الارسال 🙏 بس اكدر ارد على الرسائل النصية، اكتبلي شتحتاج 😊"

// Engine is the conversation engine: one inbound message goes in, at most one
// reply per debounced turn comes out.
type Engine struct {
	sessions  *session.Manager
	debouncer *session.Debouncer
	router    *flow.Router
	sender    messenger.Sender
	store     store.Store
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	replyDelay time.Duration
}

// WithReplyDelay overrides the debounce window before a reply is composed.
func WithReplyDelay(delay time.Duration) EngineOption {
	return func(c *engineConfig) {
		if delay > 0 {
			c.replyDelay = delay
		}
	}
}

// NewEngine creates the conversation engine.
func NewEngine(sessions *session.Manager, router *flow.Router, sender messenger.Sender, st store.Store, opts ...EngineOption) *Engine {
	cfg := engineConfig{replyDelay: session.DefaultReplyDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		sessions: sessions,
		router:   router,
		sender:   sender,
		store:    st,
	}
	e.debouncer = session.NewDebouncer(e.handleTurn, session.WithDelay(cfg.replyDelay))
	return e
}

// HandleMessage processes one inbound Messenger message. Text fragments are
// buffered behind the debounce window; attachment-only messages get a canned
// reply immediately.
func (e *Engine) HandleMessage(ctx context.Context, msg messenger.ParsedMessage) {
	if msg.SenderID == "" {
		slog.Warn("Engine.HandleMessage dropping message without sender")
		return
	}

	if msg.Text == "" {
		if msg.HasAttachment {
			e.handleAttachment(ctx, msg.SenderID)
		}
		return
	}

	e.recordTranscript(ctx, msg.SenderID, models.RoleUser, msg.Text)

	sess := e.sessions.GetOrCreate(msg.SenderID)
	e.debouncer.OnMessage(ctx, sess, msg.Text)
	slog.Debug("Engine.HandleMessage buffered", "userID", msg.SenderID, "messageID", msg.MessageID)
}

// handleAttachment answers media-only messages right away; there is nothing
// to coalesce.
func (e *Engine) handleAttachment(ctx context.Context, userID string) {
	sess := e.sessions.GetOrCreate(userID)
	sess.Touch()

	if err := e.sender.SendMessage(ctx, userID, AttachmentReply); err != nil {
		slog.Error("Engine.handleAttachment send failed", "error", err, "userID", userID)
		return
	}
	e.recordTranscript(ctx, userID, models.RoleAssistant, AttachmentReply)
}

// handleTurn composes and delivers the reply for one coalesced turn. It runs
// under the session's turn lock via the debouncer.
func (e *Engine) handleTurn(ctx context.Context, sess *session.Session, text string) {
	if err := e.sender.SendAction(ctx, sess.UserID, messenger.ActionTypingOn); err != nil {
		slog.Debug("Engine.handleTurn typing_on failed", "error", err, "userID", sess.UserID)
	}

	reply := e.router.Route(ctx, sess, text)

	sess.AddHistory(models.RoleUser, text)

	if reply == "" {
		slog.Debug("Engine.handleTurn produced no reply", "userID", sess.UserID)
		e.sendTypingOff(ctx, sess.UserID)
		return
	}

	// A turn that resolves to the exact same reply as the previous one adds
	// nothing; drop it instead of repeating ourselves.
	if reply == sess.LastReply() {
		slog.Debug("Engine.handleTurn suppressing duplicate reply", "userID", sess.UserID)
		e.sendTypingOff(ctx, sess.UserID)
		return
	}

	if err := e.sender.SendMessage(ctx, sess.UserID, reply); err != nil {
		slog.Error("Engine.handleTurn send failed", "error", err, "userID", sess.UserID)
		e.sendTypingOff(ctx, sess.UserID)
		return
	}
	e.sendTypingOff(ctx, sess.UserID)

	sess.AddHistory(models.RoleAssistant, reply)
	sess.SetLastReply(reply)
	sess.Touch()
	e.recordTranscript(ctx, sess.UserID, models.RoleAssistant, reply)
}

// SendDirect delivers an out-of-band message (such as a stalled-booking
// reminder) to a user, bypassing the debouncer.
func (e *Engine) SendDirect(ctx context.Context, userID, text string) {
	if err := e.sender.SendMessage(ctx, userID, text); err != nil {
		slog.Error("Engine.SendDirect failed", "error", err, "userID", userID)
		return
	}
	if sess, ok := e.sessions.Get(userID); ok {
		sess.AddHistory(models.RoleAssistant, text)
		sess.SetLastReply(text)
	}
	e.recordTranscript(ctx, userID, models.RoleAssistant, text)
}

// Flush fires any pending turn for the user immediately. Used in tests and
// on shutdown.
func (e *Engine) Flush(ctx context.Context, userID string) {
	if sess, ok := e.sessions.Get(userID); ok {
		e.debouncer.Flush(ctx, sess)
	}
}

func (e *Engine) sendTypingOff(ctx context.Context, userID string) {
	if err := e.sender.SendAction(ctx, userID, messenger.ActionTypingOff); err != nil {
		slog.Debug("Engine typing_off failed", "error", err, "userID", userID)
	}
}

func (e *Engine) recordTranscript(ctx context.Context, userID, role, body string) {
	if e.store == nil {
		return
	}
	entry := models.TranscriptEntry{
		UserID: userID,
		Role:   role,
		Body:   body,
		Time:   time.Now().Unix(),
	}
	if err := e.store.AddTranscriptEntry(ctx, entry); err != nil {
		slog.Error("Engine transcript write failed", "error", err, "userID", userID)
	}
}
