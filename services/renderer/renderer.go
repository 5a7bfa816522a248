package renderer

import (
	"sort"
	"strings"
)

// reserved variable names are bound by the engine itself and never surface
// as template inputs.
var reserved = map[string]bool{
	"email": true,
}

// Render substitutes every {{name}} placeholder in the template with the
// matching value from variables. Unknown placeholders render as empty
// strings. Substitution is a single pass over the input, so values that
// themselves contain {{...}} are emitted literally and never re-expanded.
func Render(template string, variables map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for {
		open := strings.Index(template, "{{")
		if open < 0 {
			b.WriteString(template)
			return b.String()
		}
		close := strings.Index(template[open+2:], "}}")
		if close < 0 {
			b.WriteString(template)
			return b.String()
		}

		b.WriteString(template[:open])
		name := strings.TrimSpace(template[open+2 : open+2+close])
		b.WriteString(variables[name])
		template = template[open+2+close+2:]
	}
}

// Variables returns the distinct placeholder names appearing in the given
// template bodies, sorted, with engine-reserved names filtered out.
func Variables(bodies ...string) []string {
	seen := map[string]bool{}
	for _, body := range bodies {
		for {
			open := strings.Index(body, "{{")
			if open < 0 {
				break
			}
			close := strings.Index(body[open+2:], "}}")
			if close < 0 {
				break
			}
			name := strings.TrimSpace(body[open+2 : open+2+close])
			if name != "" && !reserved[name] {
				seen[name] = true
			}
			body = body[open+2+close+2:]
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
