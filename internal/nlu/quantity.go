package nlu

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// quantityPattern matches a standalone one or two digit number.
var quantityPattern = regexp.MustCompile(`\b(\d{1,2})\b`)

// numberWord pairs a spelled-out Arabic number with its value. Matching is
// token-exact: short forms like "ست" appear inside unrelated words, so
// substring search would misfire.
type numberWord struct {
	word  string
	value int
}

var arabicNumberWords = []numberWord{
	{"واحد", 1}, {"وحدة", 1},
	{"اثنين", 2}, {"أثنين", 2}, {"ثنين", 2},
	{"ثلاثة", 3}, {"ثلاث", 3}, {"تلاثة", 3}, {"تلاث", 3},
	{"اربعة", 4}, {"أربعة", 4}, {"اربع", 4}, {"أربع", 4},
	{"خمسة", 5}, {"خمس", 5},
	{"ستة", 6}, {"ست", 6},
	{"سبعة", 7}, {"سبع", 7},
	{"ثمانية", 8}, {"ثمان", 8},
	{"تسعة", 9}, {"تسع", 9},
	{"عشرة", 10}, {"عشر", 10},
}

// ExtractQuantity finds a tooth count in free text, either as a digit run or
// a spelled-out Arabic number. Counts outside 1..32 are rejected. The second
// return value reports whether a quantity was found.
func ExtractQuantity(text string) (int, bool) {
	normalized := Normalize(text)

	if match := quantityPattern.FindString(normalized); match != "" {
		n, err := strconv.Atoi(match)
		if err == nil && n >= 1 && n <= models.MaxTeethCount {
			return n, true
		}
	}

	tokens := strings.Fields(normalized)
	for _, nw := range arabicNumberWords {
		for _, token := range tokens {
			if token == nw.word {
				return nw.value, true
			}
		}
	}
	return 0, false
}
