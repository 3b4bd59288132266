package nlu

import (
	"strings"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// nameLeadIns are common self-introduction prefixes stripped before treating
// the remainder of the message as the user's name.
var nameLeadIns = []string{
	"اسمي هو", "اسمي", "أسمي", "انا اسمي", "أنا اسمي", "انا", "أنا",
	"my name is", "i am", "i'm", "name:",
}

// ExtractName interprets a free-text reply as the user's name. Lead-in
// phrases are stripped and the result is length-capped. It returns false when
// the message is empty or looks like a phone number rather than a name.
func ExtractName(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	if LooksLikePhone(trimmed) {
		return "", false
	}

	lowered := strings.ToLower(trimmed)
	for _, lead := range nameLeadIns {
		if strings.HasPrefix(lowered, lead) {
			trimmed = strings.TrimSpace(trimmed[len(lead):])
			break
		}
	}
	if trimmed == "" {
		return "", false
	}

	runes := []rune(trimmed)
	if len(runes) > models.MaxNameLength {
		trimmed = string(runes[:models.MaxNameLength])
	}
	return trimmed, true
}
