package validators

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeString trims input, drops control characters other than newline
// and tab, and NFC-normalizes it so the same product name typed on two
// keyboards compares equal. maxLen counts runes; zero means no limit.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, norm.NFC.String(input))
	cleaned = strings.TrimSpace(cleaned)
	if maxLen <= 0 {
		return cleaned
	}
	if runes := []rune(cleaned); len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}

// SanitizeOptional is SanitizeString for optional fields: blank becomes nil.
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	if v := SanitizeString(*input, maxLen); v != "" {
		return &v
	}
	return nil
}
