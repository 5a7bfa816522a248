package repository

import "errors"

var (
	ErrSenderNotFound    = errors.New("sender not found")
	ErrSenderExists      = errors.New("sender already exists")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInvalidInput      = errors.New("invalid input parameters")
)
