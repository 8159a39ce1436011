package auth

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid-signature")
	ErrVerifierUnavailable  = errors.New("wallet-verifier-unavailable")
	UnexpectedVerifierError = errors.New("unexpected-verifier-error")
)
