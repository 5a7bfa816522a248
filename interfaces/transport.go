package interfaces

import (
	"context"
	"time"

	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/internal/models"
)

// MailSession is one authenticated SMTP connection. It is scoped to a
// single orchestrator invocation: acquired up front, released on every exit
// path.
type MailSession interface {
	// Send delivers one message and returns the normalized message id
	// (angle brackets stripped) assigned to it.
	Send(ctx context.Context, msg dto.OutboundMessage) (string, error)
	Close() error
}

// MailDialer opens mail sessions for a sender. Dialing includes
// authentication, so a returned session is verified usable; a dial error is
// a fatal precondition for the whole run.
type MailDialer interface {
	Dial(ctx context.Context, sender *models.Sender, password string) (MailSession, error)
}

// MailboxSession is one authenticated connection to a sender's inbound
// mailbox, used for bounce scanning.
type MailboxSession interface {
	// SearchBounces returns parsed delivery-failure notifications received
	// since the given cutoff.
	SearchBounces(ctx context.Context, since time.Time) ([]dto.BounceMessage, error)
	Close() error
}

// MailboxDialer opens mailbox sessions for a sender.
type MailboxDialer interface {
	Dial(ctx context.Context, sender *models.Sender, password string) (MailboxSession, error)
}
