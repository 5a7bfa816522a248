package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendframe/sendframe/dto"
)

func TestBuildMessage_MultipartAlternative(t *testing.T) {
	msg := dto.OutboundMessage{
		FromAddress: "hello@acme.com",
		FromName:    "Acme Outreach",
		ToAddress:   "ada@example.com",
		Subject:     "Welcome",
		BodyHTML:    "<html><body><p>Hello Ada</p></body></html>",
	}

	buffer, err := buildMessage(msg, "<123.abc@acme.com>")
	require.NoError(t, err)

	raw := buffer.String()
	assert.Contains(t, raw, "From: Acme Outreach <hello@acme.com>")
	assert.Contains(t, raw, "To: ada@example.com")
	assert.Contains(t, raw, "Message-Id: <123.abc@acme.com>")
	assert.Contains(t, raw, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, raw, "<p>Hello Ada</p>")

	// Headers must come before the first MIME part.
	assert.Less(t, strings.Index(raw, "MIME-Version: 1.0"), strings.Index(raw, "text/plain"))
}

func TestBuildMessage_FromWithoutLabel(t *testing.T) {
	msg := dto.OutboundMessage{
		FromAddress: "hello@acme.com",
		FromName:    "hello@acme.com",
		ToAddress:   "ada@example.com",
		Subject:     "Welcome",
		BodyHTML:    "<p>hi</p>",
	}

	buffer, err := buildMessage(msg, "<1@acme.com>")
	require.NoError(t, err)
	assert.Contains(t, buffer.String(), "From: hello@acme.com\r\n")
}

func TestHtmlToText_StripsMarkupAndStyle(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head>
<body><p>First line</p><p>Second line</p></body></html>`

	text := htmlToText(html)
	assert.Contains(t, text, "First line")
	assert.Contains(t, text, "Second line")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "<p>")
}

func TestHtmlToText_BreaksBecomeNewlines(t *testing.T) {
	text := htmlToText("<p>one<br>two</p>")
	assert.Contains(t, text, "one\ntwo")
}
