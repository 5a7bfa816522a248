package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	interr "github.com/sendframe/sendframe/internal/errors"
	"github.com/sendframe/sendframe/internal/repository"
)

// MultiErrors collects request validation failures keyed by field.
type MultiErrors struct {
	Errors map[string][]ErrorInfo
}

type ErrorInfo struct {
	Message  string
	RawError error
}

func NewMultiErrors() *MultiErrors {
	return &MultiErrors{
		Errors: make(map[string][]ErrorInfo),
	}
}

func (e *MultiErrors) Add(key, message string, err error) {
	e.Errors[key] = append(e.Errors[key], ErrorInfo{
		Message:  message,
		RawError: err,
	})
}

func (e *MultiErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *MultiErrors) Error() string {
	var parts []string
	for field, errors := range e.Errors {
		for _, err := range errors {
			parts = append(parts, fmt.Sprintf("%s: %s", field, err.Message))
		}
	}
	return strings.Join(parts, " | ")
}

// Respond maps a service or repository error to an HTTP response. Sentinels
// carry the status; anything unrecognized is a 500.
func Respond(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrSenderNotFound),
		errors.Is(err, repository.ErrTemplateNotFound),
		errors.Is(err, repository.ErrBatchNotFound),
		errors.Is(err, repository.ErrRecipientNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrSenderExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, interr.ErrOwnerMissing):
		return http.StatusBadRequest
	case errors.Is(err, interr.ErrNotOwned):
		return http.StatusForbidden
	case errors.Is(err, interr.ErrRecipientSent):
		return http.StatusConflict
	case errors.Is(err, interr.ErrSmtpConnection),
		errors.Is(err, interr.ErrImapConnection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
