package lifeline

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {{identifier}} where identifier is one or more word characters.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// interpolate replaces every {{name}} in body with vars[name] in a single pass.
// Absent names keep their placeholder text; substituted text is never rescanned.
func interpolate(body string, vars Vars) string {
	matches := placeholderPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body
	}
	var sb strings.Builder
	sb.Grow(len(body))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		name := body[m[2]:m[3]]
		sb.WriteString(body[last:start])
		if v, ok := vars[name]; ok && v != nil {
			sb.WriteString(v.String())
		} else {
			sb.WriteString(body[start:end])
		}
		last = end
	}
	sb.WriteString(body[last:])
	return sb.String()
}

// Placeholders returns the unique placeholder names in body, in first-occurrence order.
// Block markers such as {{#each items}} and {{/each}} are not placeholders.
func Placeholders(body string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
