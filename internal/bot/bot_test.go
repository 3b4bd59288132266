package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/flow"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/messenger"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/relay"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/session"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/store"
)

type stubGenerator struct {
	reply string
}

func (g *stubGenerator) GenerateWithHistory(_ context.Context, _ string, _ []models.ChatTurn, _ string) (string, error) {
	return g.reply, nil
}

func newTestEngine(t *testing.T, delay time.Duration) (*Engine, *messenger.MockSender, *relay.MockNotifier, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	notifier := &relay.MockNotifier{}
	machine := flow.NewBookingMachine(flow.NewSimpleTimer(), st, notifier, nil)
	router := flow.NewRouter(machine, flow.NewPriceTable(), &stubGenerator{reply: "اهلا وسهلا 😊"})
	sender := &messenger.MockSender{}
	sessions := session.NewManager()

	engine := NewEngine(sessions, router, sender, st, WithReplyDelay(delay))
	return engine, sender, notifier, st
}

func inbound(userID, text string) messenger.ParsedMessage {
	return messenger.ParsedMessage{
		SenderID:  userID,
		Text:      text,
		MessageID: "mid." + text,
		Time:      time.Now(),
	}
}

func TestEngineCoalescesFragmentsIntoOneReply(t *testing.T) {
	engine, sender, _, _ := newTestEngine(t, 30*time.Millisecond)
	ctx := context.Background()

	engine.HandleMessage(ctx, inbound("user1", "بيش"))
	engine.HandleMessage(ctx, inbound("user1", "تلبيسة"))
	engine.HandleMessage(ctx, inbound("user1", "الزركون"))

	time.Sleep(100 * time.Millisecond)

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one reply, got %d: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0].Body, "75,000") {
		t.Errorf("expected coalesced turn answered as zircon price, got %q", sent[0].Body)
	}
}

func TestEngineTypingIndicatorsAroundReply(t *testing.T) {
	engine, sender, _, _ := newTestEngine(t, 10*time.Millisecond)
	ctx := context.Background()

	engine.HandleMessage(ctx, inbound("user1", "هلو"))
	time.Sleep(60 * time.Millisecond)

	actions := sender.SentActions()
	if len(actions) != 2 {
		t.Fatalf("expected typing_on and typing_off, got %v", actions)
	}
	if actions[0].Body != messenger.ActionTypingOn || actions[1].Body != messenger.ActionTypingOff {
		t.Errorf("unexpected action order: %v", actions)
	}
}

func TestEngineAttachmentGetsCannedReply(t *testing.T) {
	engine, sender, _, _ := newTestEngine(t, time.Hour)
	ctx := context.Background()

	engine.HandleMessage(ctx, messenger.ParsedMessage{
		SenderID:      "user1",
		HasAttachment: true,
	})

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected immediate canned reply, got %d messages", len(sent))
	}
	if sent[0].Body != AttachmentReply {
		t.Errorf("unexpected reply %q", sent[0].Body)
	}
}

func TestEngineSuppressesDuplicateReply(t *testing.T) {
	engine, sender, _, _ := newTestEngine(t, 10*time.Millisecond)
	ctx := context.Background()

	engine.HandleMessage(ctx, inbound("user1", "بيش الزركون"))
	time.Sleep(50 * time.Millisecond)
	engine.HandleMessage(ctx, inbound("user1", "بيش الزركون"))
	time.Sleep(50 * time.Millisecond)

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Errorf("expected identical follow-up turn suppressed, got %d replies", len(sent))
	}
}

func TestEngineBookingEndToEnd(t *testing.T) {
	engine, sender, notifier, st := newTestEngine(t, 10*time.Millisecond)
	ctx := context.Background()

	steps := []string{"اريد احجز موعد زركون", "اسمي احمد علي", "07812345678"}
	for _, step := range steps {
		engine.HandleMessage(ctx, inbound("user1", step))
		time.Sleep(50 * time.Millisecond)
	}

	sent := sender.Sent()
	if len(sent) != 3 {
		t.Fatalf("expected 3 replies, got %d: %v", len(sent), sent)
	}
	if !strings.Contains(sent[2].Body, "تم الحجز") {
		t.Errorf("expected booking confirmation, got %q", sent[2].Body)
	}

	bookings, err := st.ListBookings(ctx)
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(bookings) != 1 || bookings[0].Phone != "07812345678" {
		t.Errorf("unexpected bookings: %+v", bookings)
	}

	notices := notifier.Sent()
	if len(notices) != 1 || !strings.Contains(notices[0], "حجز جديد") {
		t.Errorf("expected operator relay notice, got %v", notices)
	}
}

func TestEngineRecordsTranscript(t *testing.T) {
	engine, _, _, st := newTestEngine(t, 10*time.Millisecond)
	ctx := context.Background()

	engine.HandleMessage(ctx, inbound("user1", "هلو"))
	time.Sleep(50 * time.Millisecond)

	transcript, err := st.GetTranscript(ctx, "user1")
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected inbound and outbound transcript entries, got %d", len(transcript))
	}
	if transcript[0].Role != models.RoleUser || transcript[1].Role != models.RoleAssistant {
		t.Errorf("unexpected transcript roles: %+v", transcript)
	}
}

func TestEngineSendDirect(t *testing.T) {
	engine, sender, _, st := newTestEngine(t, time.Hour)
	ctx := context.Background()

	engine.SendDirect(ctx, "user1", "تذكير بالحجز")

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].Body != "تذكير بالحجز" {
		t.Fatalf("unexpected direct sends: %v", sent)
	}

	transcript, _ := st.GetTranscript(ctx, "user1")
	if len(transcript) != 1 || transcript[0].Role != models.RoleAssistant {
		t.Errorf("expected direct send recorded in transcript, got %+v", transcript)
	}
}

func TestEngineFlush(t *testing.T) {
	engine, sender, _, _ := newTestEngine(t, time.Hour)
	ctx := context.Background()

	engine.HandleMessage(ctx, inbound("user1", "هلو"))
	engine.Flush(ctx, "user1")

	if len(sender.Sent()) != 1 {
		t.Errorf("expected flushed turn to produce a reply, got %d", len(sender.Sent()))
	}
}
