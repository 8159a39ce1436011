package auth

import (
	"context"
	"time"
)

// SignatureVerifier is the external wallet authority; the relay never checks
// signatures itself.
type SignatureVerifier interface {
	Verify(ctx context.Context, address, message, signature string) (bool, error)
}

type SessionStore interface {
	UpsertWalletSession(ctx context.Context, address string) error
}

type TokenManager interface {
	Generate(address string, now time.Time) (string, error)
}
