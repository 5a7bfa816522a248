package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/tracing"
)

const (
	connectTimeout = 30 * time.Second
	inboxFolder    = "INBOX"
	// bounceSender matches the conventional envelope sender of delivery
	// status notifications.
	bounceSender = "mailer-daemon"

	fetchBatchSize = 50
)

type imapDialer struct{}

func NewDialer() interfaces.MailboxDialer {
	return &imapDialer{}
}

func (d *imapDialer) Dial(ctx context.Context, sender *models.Sender, password string) (interfaces.MailboxSession, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapDialer.Dial")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", sender.ImapServer)
	span.SetTag("port", sender.ImapPort)
	span.SetTag("tls", sender.ImapTLS)

	serverAddr := fmt.Sprintf("%s:%d", sender.ImapServer, sender.ImapPort)

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: connectTimeout,
	}

	var c *client.Client
	var err error
	if sender.ImapTLS {
		tlsConfig := &tls.Config{ServerName: sender.ImapServer}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to connect to %s", serverAddr)
		tracing.TraceErr(span, err)
		return nil, err
	}

	c.Timeout = connectTimeout
	if err = c.Login(sender.Email, password); err != nil {
		c.Logout()
		err = errors.Wrapf(err, "failed to login as %s", sender.Email)
		tracing.TraceErr(span, err)
		return nil, err
	}
	c.Timeout = 0

	return &imapSession{client: c}, nil
}

type imapSession struct {
	client *client.Client
}

// SearchBounces selects the inbox read-only and pulls every message from
// the mailer daemon received since the cutoff, parsed down to the headers
// the reconciler correlates on.
func (s *imapSession) SearchBounces(ctx context.Context, since time.Time) ([]dto.BounceMessage, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapSession.SearchBounces")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("since", since.Format(time.RFC3339))

	if _, err := s.client.Select(inboxFolder, true); err != nil {
		err = errors.Wrap(err, "failed to select inbox")
		tracing.TraceErr(span, err)
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	criteria.Header.Add("From", bounceSender)

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		err = errors.Wrap(err, "bounce search failed")
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("matched", len(uids))
	if len(uids) == 0 {
		return nil, nil
	}

	var bounces []dto.BounceMessage
	for start := 0; start < len(uids); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		batch, err := s.fetchBatch(ctx, uids[start:end])
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		bounces = append(bounces, batch...)
	}

	return bounces, nil
}

func (s *imapSession) fetchBatch(ctx context.Context, uids []uint32) ([]dto.BounceMessage, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	items := []imap.FetchItem{imap.FetchUid, imap.FetchRFC822}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var bounces []dto.BounceMessage
	for msg := range messages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bounce, ok := parseBounce(msg)
		if ok {
			bounces = append(bounces, bounce)
		}
	}

	if err := <-done; err != nil {
		return nil, errors.Wrap(err, "bounce fetch failed")
	}
	return bounces, nil
}

// parseBounce extracts the correlation headers from a raw bounce message.
// Unparseable messages are skipped rather than failing the whole scan.
func parseBounce(msg *imap.Message) (dto.BounceMessage, bool) {
	var raw []byte
	for _, literal := range msg.Body {
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(literal); err == nil {
			raw = buf.Bytes()
			break
		}
	}
	if len(raw) == 0 {
		return dto.BounceMessage{}, false
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return dto.BounceMessage{}, false
	}

	return dto.BounceMessage{
		Subject:    envelope.GetHeader("Subject"),
		References: strings.Fields(envelope.GetHeader("References")),
		InReplyTo:  envelope.GetHeader("In-Reply-To"),
	}, true
}

func (s *imapSession) Close() error {
	return s.client.Logout()
}
