// internal/service/template_service.go
package service

import (
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/unclebandit/anniversary-reminder/internal/model"
)

// Placeholders returns the token values for a record. Unset fields map to "".
func Placeholders(r *model.Record) map[string]string {
	data := map[string]string{
		"first_name":           r.FirstName,
		"last_name":            r.LastName,
		"full_name":            r.FullName(),
		"deceased_first_name":  r.DeceasedFirstName,
		"deceased_last_name":   r.DeceasedLastName,
		"deceased_full_name":   r.DeceasedFullName(),
		"lead_time_days":       strconv.Itoa(r.LeadTimeDays),
		"reference_date":       "",
		"next_occurrence_date": "",
	}
	if r.ReferenceDate != nil {
		data["reference_date"] = r.ReferenceDate.String()
	}
	if r.NextOccurrence != nil {
		data["next_occurrence_date"] = r.NextOccurrence.String()
	}
	return data
}

// RenderTemplate replaces {key}, {{key}} and {{ key }} with data[key].
// Tokens not in data are left as they are.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	// Double-brace spellings first: "{key}" is a substring of "{{key}}".
	for _, k := range sortedKeys(data) {
		v := data[k]
		result = strings.ReplaceAll(result, "{{ "+k+" }}", v)
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	for _, k := range sortedKeys(data) {
		result = strings.ReplaceAll(result, "{"+k+"}", data[k])
	}
	return result
}

// RenderRecord renders template with the record's placeholders.
func RenderRecord(template string, r *model.Record) string {
	return RenderTemplate(template, Placeholders(r))
}

func sortedKeys(data map[string]string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	// Longest first, then alphabetical, so output never depends on map order.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

var (
	breakTags  = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</h[1-6]>|</li>`)
	anyTag     = regexp.MustCompile(`<[^>]*>`)
	blankLines = regexp.MustCompile(`\n\s*\n+`)
)

// PlainFallback derives the text/plain alternative from an HTML body.
func PlainFallback(body string) string {
	text := breakTags.ReplaceAllString(body, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
