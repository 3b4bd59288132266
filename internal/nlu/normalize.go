// Package nlu provides deterministic keyword classification and text
// extraction for inbound clinic messages.
//
// All classifiers operate on a normalized copy of the text (Arabic-Indic
// digits translated to ASCII, case folded) and are total: they always return
// a value and never fail.
package nlu

import "strings"

// digitTranslations maps Arabic-Indic (U+0660..U+0669) and Extended
// Arabic-Indic (U+06F0..U+06F9) digit glyphs to their ASCII equivalents.
var digitTranslations = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

// Normalize returns a copy of text with alternate digit glyphs translated to
// ASCII, Latin letters lower-cased and surrounding whitespace trimmed.
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		if d, ok := digitTranslations[r]; ok {
			return d
		}
		return r
	}, text)
	return strings.TrimSpace(strings.ToLower(mapped))
}

// containsAny reports whether the normalized text contains any of the given
// keywords. Keywords are assumed to already be in normalized form.
func containsAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}
