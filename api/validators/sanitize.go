package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims free text from tills (reasons, notes, names), folds
// control characters and newlines into single spaces and caps it at maxLen
// runes. Notes end up inside chat messages, so stray line breaks are dropped.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	out := b.String()
	if maxLen <= 0 {
		return out
	}
	if runes := []rune(out); len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return out
}
