package flow

import (
	"context"
	"log/slog"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/nlu"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/session"
)

// FallbackReply is sent whenever reply generation fails; the user always gets
// an answer.
const FallbackReply = "صار خطأ بسيط… حاول مرة ثانية 🙏"

// bookingNudge is appended to medical answers to steer symptoms toward an
// in-clinic visit.
const bookingNudge = "\n\nاذا تحب نحجزلك موعد بالعيادة، دزلي كلمة حجز 😊"

// System prompts for the generated reply paths. The persona is the clinic's
// front-desk assistant speaking Iraqi Arabic.
const (
	personaPrompt = "انت مساعد عيادة اسنان بالعراق. رد باللهجة العراقية بأسلوب ودود ومختصر. " +
		"لا تعطي تشخيص طبي نهائي ولا تخترع اسعار او مواعيد. " +
		"اذا سألك المريض عن شي ما تعرفه، اطلب منه يتصل بالعيادة."

	medicalPrompt = "انت مساعد عيادة اسنان بالعراق. المريض يوصف اعراض. " +
		"رد باللهجة العراقية بتعاطف، اعطي نصيحة عامة مؤقتة فقط (مثل مسكن خفيف او كمادات)، " +
		"واكد عليه ان التشخيص الدقيق يحتاج فحص بالعيادة. لا تشخص ولا تصف ادوية بجرعات."

	complaintPrompt = "انت مساعد عيادة اسنان بالعراق. المريض عنده شكوى او منزعج. " +
		"رد باللهجة العراقية باعتذار صادق وتفهم، وبين ان ملاحظته راح توصل للادارة. لا تتجادل."
)

// ReplyGenerator produces free-form replies for turns no deterministic path
// covers.
type ReplyGenerator interface {
	GenerateWithHistory(ctx context.Context, systemPrompt string, history []models.ChatTurn, userText string) (string, error)
}

// Router decides how each coalesced user turn is answered: active booking
// flows take precedence, then the deterministic intent paths, then generated
// replies.
type Router struct {
	machine *BookingMachine
	prices  *PriceTable
	gen     ReplyGenerator
}

// NewRouter creates a router over the given booking machine, price table and
// reply generator.
func NewRouter(machine *BookingMachine, prices *PriceTable, gen ReplyGenerator) *Router {
	return &Router{
		machine: machine,
		prices:  prices,
		gen:     gen,
	}
}

// Route produces the reply for one user turn. It never returns an empty
// string for non-empty input; generation failures fall back to a fixed
// apology.
func (r *Router) Route(ctx context.Context, sess *session.Session, text string) string {
	// An in-progress booking owns the conversation until it finishes or the
	// user interrupts.
	switch sess.BookingState() {
	case models.BookingAwaitingName, models.BookingAwaitingPhone:
		return r.machine.Advance(ctx, sess, text)
	}

	intent := nlu.ClassifyIntent(text)
	sess.SetService(nlu.ClassifyService(text))
	slog.Debug("Router.Route classified turn", "userID", sess.UserID, "intent", intent, "service", sess.Service())

	switch intent {
	case models.IntentBooking:
		return r.machine.Start(ctx, sess, text)

	case models.IntentPrice:
		service := nlu.ClassifyService(text)
		if service == models.ServiceUnspecified {
			service = sess.Service()
		}
		quantity, _ := nlu.ExtractQuantity(text)
		return r.prices.Answer(service, quantity)

	case models.IntentMedical:
		reply := r.generate(ctx, sess, medicalPrompt, text)
		if reply == FallbackReply {
			return reply
		}
		return reply + bookingNudge

	case models.IntentComplaint:
		return r.generate(ctx, sess, complaintPrompt, text)

	default:
		return r.generate(ctx, sess, personaPrompt, text)
	}
}

func (r *Router) generate(ctx context.Context, sess *session.Session, systemPrompt, text string) string {
	if r.gen == nil {
		return FallbackReply
	}
	reply, err := r.gen.GenerateWithHistory(ctx, systemPrompt, sess.History(), text)
	if err != nil {
		slog.Error("Router.generate failed", "error", err, "userID", sess.UserID)
		return FallbackReply
	}
	if reply == "" {
		return FallbackReply
	}
	return reply
}
