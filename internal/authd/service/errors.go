package service

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrEmailTaken reports a registration against an existing email.
	ErrEmailTaken = errors.New("email_taken")

	// ErrValidation reports a structurally invalid registration payload.
	ErrValidation = errors.New("validation_failed")
)
