package gate

import (
	"strings"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

// Classify maps raw input to a phone (11 digits) or ID-card (18 digits, or
// 17 digits followed by an X checksum) query. ok is false otherwise.
func Classify(input string) (domain.Query, bool) {
	switch {
	case len(input) == 11 && isDigits(input):
		return domain.Query{Type: domain.QueryPhone, Value: input}, true
	case len(input) == 18 && isDigits(input):
		return domain.Query{Type: domain.QueryIDCard, Value: input}, true
	case len(input) == 18 && isDigits(input[:17]) && (input[17] == 'X' || input[17] == 'x'):
		return domain.Query{Type: domain.QueryIDCard, Value: strings.ToUpper(input)}, true
	}
	return domain.Query{}, false
}

// LooksLikeQuery reports whether text is worth routing to the gate at all:
// any run of digits, or an 18-char ID with an X checksum. Anything else is
// ignored without touching the limiter or the ledger.
func LooksLikeQuery(text string) bool {
	if isDigits(text) {
		return true
	}
	return len(text) == 18 && isDigits(text[:17]) && (text[17] == 'X' || text[17] == 'x')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
