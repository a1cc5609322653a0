package service

import "errors"

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrAmountTooSmall           = errors.New("amount is below the configured minimum")
	ErrDescriptionTooLong       = errors.New("order description exceeds the gateway limit")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
	ErrNotOwner                 = errors.New("transaction does not belong to user")
	ErrInvalidSignature         = errors.New("invalid callback signature")
	ErrAmountMismatch           = errors.New("callback amount does not match transaction")
	ErrInvalidStatus            = errors.New("invalid status for operation")
	ErrRetryLimitReached        = errors.New("payment url retry limit reached")
)
