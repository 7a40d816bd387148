package service

import (
	"strings"
	"unicode"
)

// ParseRecipients splits a free-text email field on commas, semicolons and
// whitespace. Tokens need an "@" and a "." to count; duplicates are dropped
// keeping the first occurrence.
func ParseRecipients(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})

	recipients := []string{}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		addr := strings.Trim(f, "<>\"'")
		if !strings.Contains(addr, "@") || !strings.Contains(addr, ".") {
			continue
		}
		key := strings.ToLower(addr)
		if seen[key] {
			continue
		}
		seen[key] = true
		recipients = append(recipients, addr)
	}
	return recipients
}
