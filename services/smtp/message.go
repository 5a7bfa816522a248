package smtp

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/sendframe/sendframe/dto"
)

// buildMessage renders the outbound message as multipart/alternative MIME:
// a plain-text part derived from the HTML body, then the HTML part itself.
func buildMessage(msg dto.OutboundMessage, messageID string) (*bytes.Buffer, error) {
	buffer := bytes.NewBuffer(nil)

	writer := multipart.NewWriter(buffer)
	boundary := writer.Boundary()

	headers := buildHeaders(msg, messageID)
	headers["Content-Type"] = "multipart/alternative; boundary=" + boundary

	// The writer emits nothing until the first part, so the headers land
	// ahead of the MIME body.
	writeHeaders(headers, buffer)

	textBody := htmlToText(msg.BodyHTML)
	if err := addPart(writer, "text/plain; charset=UTF-8", textBody); err != nil {
		return nil, err
	}
	if err := addPart(writer, "text/html; charset=UTF-8", msg.BodyHTML); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}
	return buffer, nil
}

func buildHeaders(msg dto.OutboundMessage, messageID string) map[string]string {
	from := msg.FromAddress
	if msg.FromName != "" && msg.FromName != msg.FromAddress {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", msg.FromName), msg.FromAddress)
	}

	return map[string]string{
		"From":         from,
		"To":           msg.ToAddress,
		"Subject":      mime.QEncoding.Encode("utf-8", msg.Subject),
		"Message-Id":   messageID,
		"Date":         time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version": "1.0",
	}
}

func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	// Fixed order keeps the envelope-relevant headers first.
	order := []string{"From", "To", "Subject", "Message-Id", "Date", "MIME-Version", "Content-Type"}
	for _, k := range order {
		if v, ok := headers[k]; ok {
			buffer.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
		}
	}
	buffer.WriteString("\r\n")
}

func addPart(writer *multipart.Writer, contentType, content string) error {
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create %s part", contentType)
	}

	qp := quotedprintable.NewWriter(part)
	if _, err = qp.Write([]byte(content)); err != nil {
		return errors.Wrapf(err, "failed to write %s content", contentType)
	}
	return qp.Close()
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// htmlToText derives the plain-text alternative from the rendered HTML
// body. Falls back to the raw input when it does not parse as HTML.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("style,script,head").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p,div,li,tr,h1,h2,h3,h4,h5,h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
