// Package render substitutes {{token}} placeholders in mail templates.
package render

import (
	"regexp"

	"github.com/blockedby/mailmerge/internal/models"
)

// tokenRe matches {{ key }} where key is [a-zA-Z0-9_]+; inner whitespace is ignored.
var tokenRe = regexp.MustCompile(`{{\s*([a-zA-Z0-9_]+)\s*}}`)

// Render replaces every token in tmpl with the value of its mapped column in row.
// Unmapped keys and missing or nil columns render as an empty string.
func Render(tmpl string, row models.Row, mapping models.ColumnMapping) string {
	return tokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		key := tokenRe.FindStringSubmatch(tok)[1]
		col, ok := mapping[key]
		if !ok || col == "" {
			return ""
		}
		return row.String(col)
	})
}

// Template renders both parts of t for row.
func Template(t models.Template, row models.Row, mapping models.ColumnMapping) (subject, body string) {
	return Render(t.Subject, row, mapping), Render(t.Body, row, mapping)
}

// ExtractVars returns the distinct token names in tmpl in order of first appearance.
func ExtractVars(tmpl string) []string {
	matches := tokenRe.FindAllStringSubmatch(tmpl, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		vars = append(vars, m[1])
	}
	return vars
}
