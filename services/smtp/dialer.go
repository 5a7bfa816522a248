package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/internal/utils"
)

const dialTimeout = 15 * time.Second

type smtpDialer struct {
	// messageIDDomain overrides the sender's domain in generated
	// Message-Id headers when set.
	messageIDDomain string
}

func NewDialer(messageIDDomain string) interfaces.MailDialer {
	return &smtpDialer{messageIDDomain: messageIDDomain}
}

// Dial opens the connection, negotiates TLS per the sender's security mode
// and authenticates. Authentication happening here is what makes a dial
// error a reliable verdict on the sender's credentials before any
// recipient is touched.
func (d *smtpDialer) Dial(ctx context.Context, sender *models.Sender, password string) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "smtpDialer.Dial")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("smtp_server", sender.SmtpServer)
	span.LogKV("smtp_port", sender.SmtpPort)
	span.LogKV("smtp_security", sender.SmtpSecurity.String())

	addr := fmt.Sprintf("%s:%d", sender.SmtpServer, sender.SmtpPort)

	var client *smtp.Client
	var err error
	switch sender.SmtpSecurity {
	case enum.SmtpSecurityStartTLS:
		client, err = dialWithSTARTTLS(addr, sender.SmtpServer)
	default:
		client, err = dialWithImplicitTLS(addr, sender.SmtpServer)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	auth := smtp.PlainAuth("", sender.Email, password, sender.SmtpServer)
	if err = client.Auth(auth); err != nil {
		client.Close()
		err = errors.Wrap(err, "SMTP authentication failed")
		tracing.TraceErr(span, err)
		return nil, err
	}

	domain := d.messageIDDomain
	if domain == "" {
		domain = utils.ExtractDomainFromEmail(sender.Email)
	}

	return &smtpSession{
		client:          client,
		messageIDDomain: domain,
	}, nil
}

func dialWithImplicitTLS(addr, host string) (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: host}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SMTP server")
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to create SMTP client")
	}
	return client, nil
}

func dialWithSTARTTLS(addr, host string) (*smtp.Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SMTP server")
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to create SMTP client")
	}

	tlsConfig := &tls.Config{ServerName: host}
	if err = client.StartTLS(tlsConfig); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to start TLS")
	}
	return client, nil
}

type smtpSession struct {
	client          *smtp.Client
	messageIDDomain string
}

func (s *smtpSession) Send(ctx context.Context, msg dto.OutboundMessage) (string, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "smtpSession.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("to", msg.ToAddress)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	messageID := utils.GenerateMessageID(s.messageIDDomain, msg.ToAddress)

	buffer, err := buildMessage(msg, messageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	if err = s.client.Mail(msg.FromAddress); err != nil {
		err = classifySMTPError("MAIL FROM", err)
		tracing.TraceErr(span, err)
		return "", err
	}
	if err = s.client.Rcpt(msg.ToAddress); err != nil {
		err = classifySMTPError("RCPT TO", err)
		tracing.TraceErr(span, err)
		return "", err
	}

	dataWriter, err := s.client.Data()
	if err != nil {
		err = classifySMTPError("DATA", err)
		tracing.TraceErr(span, err)
		return "", err
	}
	if _, err = dataWriter.Write(buffer.Bytes()); err != nil {
		dataWriter.Close()
		err = errors.Wrap(err, "failed to write message data")
		tracing.TraceErr(span, err)
		return "", err
	}
	if err = dataWriter.Close(); err != nil {
		err = classifySMTPError("DATA", err)
		tracing.TraceErr(span, err)
		return "", err
	}

	return utils.NormalizeMessageID(messageID), nil
}

func (s *smtpSession) Close() error {
	if err := s.client.Quit(); err != nil {
		return s.client.Close()
	}
	return nil
}

// classifySMTPError preserves the server's reply code and text so the
// recorded failure detail is diagnosable, not just "send failed".
func classifySMTPError(command string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		parts := []string{
			fmt.Sprintf("SMTP %s rejected", command),
			fmt.Sprintf("code %d", tpErr.Code),
			strings.TrimSpace(tpErr.Msg),
		}
		return errors.New(strings.Join(parts, " | "))
	}
	return errors.Wrapf(err, "SMTP %s failed", command)
}
