package jwtx

import "errors"

var (
	// ErrExpired reports a well-formed, correctly signed token whose exp has
	// passed. Callers map this to a retriable "token expired" response; every
	// other verification failure maps to ErrInvalid and is not retriable.
	ErrExpired = errors.New("jwtx: token expired")

	// ErrInvalid reports a malformed token, a bad signature, an unexpected
	// signing algorithm, or missing required claims.
	ErrInvalid = errors.New("jwtx: token invalid")
)
