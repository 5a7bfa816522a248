package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_SubstitutesKnownPlaceholders(t *testing.T) {
	out := Render("Hello {{firstName}} from {{company}}!", map[string]string{
		"firstName": "Ada",
		"company":   "Acme",
	})
	require.Equal(t, "Hello Ada from Acme!", out)
}

func TestRender_MissingPlaceholderRendersEmpty(t *testing.T) {
	out := Render("Hi {{firstName}}, re: {{topic}}", map[string]string{
		"firstName": "Ada",
	})
	require.Equal(t, "Hi Ada, re: ", out)
}

func TestRender_SinglePassNeverReexpands(t *testing.T) {
	out := Render("{{a}}", map[string]string{
		"a": "{{b}}",
		"b": "boom",
	})
	require.Equal(t, "{{b}}", out)
}

func TestRender_UnterminatedPlaceholderIsLiteral(t *testing.T) {
	out := Render("Hello {{firstName", map[string]string{"firstName": "Ada"})
	require.Equal(t, "Hello {{firstName", out)
}

func TestRender_SubstringNamesAreDistinct(t *testing.T) {
	out := Render("{{name}} vs {{names}}", map[string]string{
		"name":  "one",
		"names": "many",
	})
	require.Equal(t, "one vs many", out)
}

func TestRender_WhitespaceInsidePlaceholder(t *testing.T) {
	out := Render("Hello {{ firstName }}", map[string]string{"firstName": "Ada"})
	require.Equal(t, "Hello Ada", out)
}

func TestVariables_SortedDistinctAcrossBodies(t *testing.T) {
	vars := Variables("Hi {{firstName}} {{lastName}}", "Re: {{firstName}} at {{company}}")
	require.Equal(t, []string{"company", "firstName", "lastName"}, vars)
}

func TestVariables_ReservedNamesExcluded(t *testing.T) {
	vars := Variables("Send to {{email}} for {{firstName}}")
	require.Equal(t, []string{"firstName"}, vars)
}

func TestVariables_EmptyTemplate(t *testing.T) {
	require.Empty(t, Variables(""))
}
