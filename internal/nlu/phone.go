package nlu

import (
	"regexp"
	"strings"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// phonePattern matches a digit run that plausibly contains a phone number,
// allowing spaces and dashes between digits and an optional leading plus.
var phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{7,}\d`)

// countryCodePrefixes are the Iraqi country-code spellings that get folded
// into the local leading zero before validation.
var countryCodePrefixes = []string{"+964", "00964", "964"}

// ExtractPhone finds and validates an Iraqi mobile number in free text.
// Digit glyphs are normalized first, then the candidate is stripped of
// separators, country-code prefixes are folded to a leading "0", and the
// result must be exactly 11 digits starting with "07". The second return
// value reports whether a valid number was found.
func ExtractPhone(text string) (string, bool) {
	normalized := Normalize(text)
	for _, candidate := range phonePattern.FindAllString(normalized, -1) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, candidate)

		for _, prefix := range countryCodePrefixes {
			trimmed := strings.TrimPrefix(prefix, "+")
			if strings.HasPrefix(digits, trimmed) && len(digits) > len(trimmed) {
				digits = "0" + digits[len(trimmed):]
				break
			}
		}

		if len(digits) == models.PhoneLength && strings.HasPrefix(digits, models.PhonePrefix) {
			return digits, true
		}
	}
	return "", false
}

// LooksLikePhone reports whether the text is mostly digits, i.e. the user
// probably sent a phone number where something else was expected.
func LooksLikePhone(text string) bool {
	normalized := Normalize(text)
	if normalized == "" {
		return false
	}
	digits := 0
	total := 0
	for _, r := range normalized {
		if r == ' ' || r == '-' || r == '+' {
			continue
		}
		total++
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return total >= 6 && digits*2 > total
}
