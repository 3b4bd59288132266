package nlu

import (
	"log/slog"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// intentRule pairs a keyword list with the intent it selects.
type intentRule struct {
	intent   models.Intent
	keywords []string
}

// intentRules is the ordered precedence table for intent classification.
// Booking is checked first: a booking request must never be misclassified as
// anything else, even when the same message also mentions prices or symptoms.
// First match wins; no scoring.
var intentRules = []intentRule{
	{models.IntentBooking, []string{
		"حجز", "احجز", "أحجز", "حجزلي", "موعد", "اريد اجي", "اريد آجي",
		"book", "appointment", "reserve",
	}},
	{models.IntentPrice, []string{
		"سعر", "اسعار", "أسعار", "السعر", "بيش", "شكد", "شقد", "كلفة",
		"تكلفة", "عرض", "عروض", "price", "cost", "how much", "offer",
	}},
	{models.IntentMedical, []string{
		"الم", "ألم", "آلم", "وجع", "يوجع", "توجع", "يعورني", "تعورني",
		"تورم", "انتفاخ", "نزف", "نزيف", "التهاب", "حساسية", "خراج",
		"مكسور", "pain", "ache", "hurts", "swelling", "bleeding",
	}},
	{models.IntentComplaint, []string{
		"شكوى", "شكوه", "زعلان", "مستاء", "تأخرتو", "تاخرتو", "مو زين",
		"خدمة سيئة", "complaint", "terrible", "bad service",
	}},
}

// ClassifyIntent maps free text to exactly one intent category using the
// ordered rule table. It is deterministic and always returns a value.
func ClassifyIntent(text string) models.Intent {
	normalized := Normalize(text)
	for _, rule := range intentRules {
		if containsAny(normalized, rule.keywords) {
			slog.Debug("ClassifyIntent matched", "intent", rule.intent)
			return rule.intent
		}
	}
	return models.IntentNormal
}

// interruptionKeywords signal that the user wants to pause an active booking
// flow without abandoning the conversation.
var interruptionKeywords = []string{
	"انتظر", "انتظري", "لحظة", "لحضة", "دقيقة", "بعدين", "عندي سؤال",
	"سؤال", "استفسار", "wait", "hold on", "one sec", "question",
}

// IsInterruption reports whether the text is an interruption utterance that
// should force an active booking flow back to idle.
func IsInterruption(text string) bool {
	return containsAny(Normalize(text), interruptionKeywords)
}
