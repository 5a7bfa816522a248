package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrOwnerMissing = errors.New("owner is missing")
	ErrNotOwned     = errors.New("resource does not belong to owner")

	// batch errors
	ErrRecipientSent = errors.New("cannot edit sent recipient")

	// transport errors
	ErrSmtpConnection = errors.New("smtp connection failed")
	ErrImapConnection = errors.New("imap connection failed")
)
