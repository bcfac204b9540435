// Package privacy scrubs free text before it is sent to the AI service.
package privacy

import (
	"regexp"
	"strings"
)

// Redacted replaces contact details found in free text.
const Redacted = "[redacted]"

var (
	// privateTagRegex matches <private>...</private> spans
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// phoneRegex matches digit runs with common separators; see minPhoneDigits.
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s().-]{8,}\d`)

	spaceRegex = regexp.MustCompile(`[ \t]{2,}`)
)

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// minPhoneDigits keeps dates and lot numbers out of phone redaction.
const minPhoneDigits = 10

// RedactContacts replaces email addresses and phone numbers.
func RedactContacts(text string) string {
	text = emailRegex.ReplaceAllString(text, Redacted)
	return phoneRegex.ReplaceAllStringFunc(text, func(m string) string {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits < minPhoneDigits {
			return m
		}
		return Redacted
	})
}

// IsEntirelyPrivate checks if nothing is left once private spans are removed.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateTags(text)) == ""
}

// Clean strips private spans and tidies whitespace. Everything else is kept as written;
// apply RedactContacts on top when contact details must not leave the client.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = spaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
