package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

func TestSessionAppendAndDrain(t *testing.T) {
	sess := NewSession("user1")

	sess.Append("A")
	sess.Append("B")
	version := sess.Append("C")

	fragments, ok := sess.Drain(version)
	if !ok {
		t.Fatal("expected drain to succeed at current version")
	}
	if len(fragments) != 3 || fragments[0] != "A" || fragments[2] != "C" {
		t.Errorf("unexpected fragments: %v", fragments)
	}

	// Second drain finds an empty buffer.
	if _, ok := sess.Drain(version); ok {
		t.Error("expected drain of empty buffer to fail")
	}
}

func TestSessionDrainStaleVersion(t *testing.T) {
	sess := NewSession("user1")
	stale := sess.Append("first")
	sess.Append("second")

	if _, ok := sess.Drain(stale); ok {
		t.Error("expected drain with stale version to fail")
	}

	// The buffer must be intact for the current version.
	fragments, ok := sess.Drain(sess.Version())
	if !ok || len(fragments) != 2 {
		t.Errorf("expected both fragments preserved, got %v (ok=%v)", fragments, ok)
	}
}

func TestSessionHistoryBounded(t *testing.T) {
	sess := NewSession("user1")
	for i := 0; i < models.MaxHistoryTurns+5; i++ {
		sess.AddHistory("user", fmt.Sprintf("msg %d", i))
	}

	history := sess.History()
	if len(history) != models.MaxHistoryTurns {
		t.Fatalf("expected history capped at %d, got %d", models.MaxHistoryTurns, len(history))
	}
	// Oldest entries were evicted.
	if history[0].Content != "msg 5" {
		t.Errorf("expected oldest surviving turn to be msg 5, got %q", history[0].Content)
	}
}

func TestSessionServiceSticky(t *testing.T) {
	sess := NewSession("user1")
	sess.SetService(models.ServiceZirconCrown)
	sess.SetService(models.ServiceUnspecified)
	if got := sess.Service(); got != models.ServiceZirconCrown {
		t.Errorf("expected zircon crown to stay sticky, got %v", got)
	}
}

func TestManagerGetOrCreateReplacesExpired(t *testing.T) {
	m := NewManager(WithTTL(50 * time.Millisecond))

	first := m.GetOrCreate("user1")
	first.AddHistory("user", "old message")
	first.SetBookingState(models.BookingAwaitingName)

	if again := m.GetOrCreate("user1"); again != first {
		t.Fatal("expected same session while live")
	}

	time.Sleep(80 * time.Millisecond)

	fresh := m.GetOrCreate("user1")
	if fresh == first {
		t.Fatal("expected expired session to be replaced")
	}
	if len(fresh.History()) != 0 {
		t.Error("expected fresh session to have empty history")
	}
	if fresh.BookingState() != models.BookingIdle {
		t.Error("expected fresh session to start idle")
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(WithTTL(30 * time.Millisecond))
	m.GetOrCreate("stale1")
	m.GetOrCreate("stale2")

	time.Sleep(50 * time.Millisecond)
	live := m.GetOrCreate("live")
	_ = live

	removed := m.Sweep()
	if removed != 2 {
		t.Errorf("expected 2 sessions swept, got %d", removed)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 session remaining, got %d", m.Len())
	}
	if _, ok := m.Get("live"); !ok {
		t.Error("expected live session to survive sweep")
	}
}

func TestDebouncerCoalescesFragments(t *testing.T) {
	var mu sync.Mutex
	var got []string

	d := NewDebouncer(func(_ context.Context, _ *Session, text string) {
		mu.Lock()
		got = append(got, text)
		mu.Unlock()
	}, WithDelay(40*time.Millisecond))

	sess := NewSession("user1")
	ctx := context.Background()

	d.OnMessage(ctx, sess, "A")
	time.Sleep(10 * time.Millisecond)
	d.OnMessage(ctx, sess, "B")
	time.Sleep(10 * time.Millisecond)
	d.OnMessage(ctx, sess, "C")

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly one coalesced turn, got %d: %v", len(got), got)
	}
	if got[0] != "A B C" {
		t.Errorf("expected fragments joined with spaces, got %q", got[0])
	}
}

func TestDebouncerSeparateTurns(t *testing.T) {
	var mu sync.Mutex
	var got []string

	d := NewDebouncer(func(_ context.Context, _ *Session, text string) {
		mu.Lock()
		got = append(got, text)
		mu.Unlock()
	}, WithDelay(20*time.Millisecond))

	sess := NewSession("user1")
	ctx := context.Background()

	d.OnMessage(ctx, sess, "first")
	time.Sleep(60 * time.Millisecond)
	d.OnMessage(ctx, sess, "second")
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected two separate turns, got %d: %v", len(got), got)
	}
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("unexpected turns: %v", got)
	}
}

func TestSessionArmTurnSwapsTimerAtomically(t *testing.T) {
	sess := NewSession("user1")

	var mu sync.Mutex
	var fired []uint64
	record := func(version uint64) {
		mu.Lock()
		fired = append(fired, version)
		mu.Unlock()
	}

	v1 := sess.ArmTurn("A", 20*time.Millisecond, record)
	v2 := sess.ArmTurn("B", 20*time.Millisecond, record)
	if v2 != v1+1 {
		t.Fatalf("expected consecutive versions, got %d then %d", v1, v2)
	}

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// Only the timer armed for the newest version may fire; the older one was
	// stopped by the swap.
	if len(fired) != 1 || fired[0] != v2 {
		t.Fatalf("expected single fire at version %d, got %v", v2, fired)
	}
	fragments, ok := sess.Drain(v2)
	if !ok || len(fragments) != 2 {
		t.Errorf("expected both fragments still buffered, got %v (ok=%v)", fragments, ok)
	}
}

func TestDebouncerConcurrentBurstOneReply(t *testing.T) {
	// Two fragments arriving on separate goroutines must never leave the
	// session with a stopped timer and a stuck buffer.
	for round := 0; round < 50; round++ {
		var mu sync.Mutex
		var got []string

		d := NewDebouncer(func(_ context.Context, _ *Session, text string) {
			mu.Lock()
			got = append(got, text)
			mu.Unlock()
		}, WithDelay(5*time.Millisecond))

		sess := NewSession("user1")
		ctx := context.Background()

		var wg sync.WaitGroup
		for _, fragment := range []string{"A", "B"} {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				d.OnMessage(ctx, sess, text)
			}(fragment)
		}
		wg.Wait()
		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		turns := append([]string(nil), got...)
		mu.Unlock()

		total := 0
		for _, turn := range turns {
			total += len(strings.Fields(turn))
		}
		if len(turns) == 0 {
			t.Fatalf("round %d: burst of 2 fragments produced no turns", round)
		}
		if total != 2 {
			t.Fatalf("round %d: expected both fragments delivered, got %v", round, turns)
		}
	}
}

func TestDebouncerStaleFireSuppressed(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	d := NewDebouncer(func(_ context.Context, _ *Session, _ string) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithDelay(time.Hour))

	sess := NewSession("user1")
	ctx := context.Background()

	d.OnMessage(ctx, sess, "first")
	stale := sess.Version()
	d.OnMessage(ctx, sess, "second")

	// Simulate the first timer slipping past its Stop.
	d.fire(ctx, sess, stale)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("expected stale fire to be suppressed, handler ran %d times", calls)
	}
}

func TestDebouncerFlush(t *testing.T) {
	var mu sync.Mutex
	var got string

	d := NewDebouncer(func(_ context.Context, _ *Session, text string) {
		mu.Lock()
		got = text
		mu.Unlock()
	}, WithDelay(time.Hour))

	sess := NewSession("user1")
	ctx := context.Background()

	d.OnMessage(ctx, sess, "hello")
	d.Flush(ctx, sess)

	mu.Lock()
	defer mu.Unlock()
	if got != "hello" {
		t.Errorf("expected flushed turn %q, got %q", "hello", got)
	}
}
