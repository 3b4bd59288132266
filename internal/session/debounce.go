package session

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultReplyDelay is how long the bot waits after the latest fragment
// before composing a single reply.
const DefaultReplyDelay = 12 * time.Second

// TurnHandler consumes one coalesced user turn. text is all buffered
// fragments joined with single spaces in arrival order.
type TurnHandler func(ctx context.Context, sess *Session, text string)

// Debouncer coalesces rapid message fragments into one reply turn. Each
// inbound fragment re-arms the session's timer; when the timer fires, a
// version check confirms nothing newer arrived before the buffered fragments
// are drained and handed to the turn handler. Cancellation and the version
// stamp back each other up, so a timer that slips past Stop still cannot
// produce a premature reply.
type Debouncer struct {
	delay   time.Duration
	handler TurnHandler
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithDelay overrides the debounce window.
func WithDelay(delay time.Duration) DebouncerOption {
	return func(d *Debouncer) {
		if delay > 0 {
			d.delay = delay
		}
	}
}

// NewDebouncer creates a debouncer that invokes handler for each coalesced
// turn.
func NewDebouncer(handler TurnHandler, opts ...DebouncerOption) *Debouncer {
	d := &Debouncer{
		delay:   DefaultReplyDelay,
		handler: handler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnMessage buffers a fragment and (re)arms the session's debounce timer. The
// append and the timer swap happen atomically on the session, so concurrent
// fragments for the same user always leave the timer bound to the newest
// version.
func (d *Debouncer) OnMessage(ctx context.Context, sess *Session, text string) {
	version := sess.ArmTurn(text, d.delay, func(version uint64) {
		d.fire(ctx, sess, version)
	})
	slog.Debug("Debouncer.OnMessage buffered fragment", "userID", sess.UserID, "version", version)
}

// Flush fires the session's pending turn immediately, bypassing the delay.
// Used by tests and by shutdown paths that do not want to drop buffered
// fragments.
func (d *Debouncer) Flush(ctx context.Context, sess *Session) {
	sess.StopTimer()
	d.fire(ctx, sess, sess.Version())
}

func (d *Debouncer) fire(ctx context.Context, sess *Session, version uint64) {
	sess.LockTurn()
	defer sess.UnlockTurn()

	fragments, ok := sess.Drain(version)
	if !ok {
		// A newer fragment re-armed the timer, or the buffer was already
		// drained; this firing is stale.
		slog.Debug("Debouncer.fire stale, skipping", "userID", sess.UserID, "version", version)
		return
	}

	text := strings.Join(fragments, " ")
	slog.Debug("Debouncer.fire handling turn", "userID", sess.UserID, "fragments", len(fragments))
	d.handler(ctx, sess, text)
}
