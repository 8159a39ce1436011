package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type service struct {
	verifier SignatureVerifier
	store    SessionStore
	tokens   TokenManager
}

func NewService(verifier SignatureVerifier, store SessionStore, tokens TokenManager) *service {
	return &service{verifier: verifier, store: store, tokens: tokens}
}

// Connect authenticates a wallet: the signature check is delegated to the
// external authority, the session row is upserted and a session token minted.
// A storage failure is logged but does not fail the login, matching how the
// original treated its session store.
func (s *service) Connect(ctx context.Context, address, message, signature string) (string, error) {
	valid, err := s.verifier.Verify(ctx, address, message, signature)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVerifierUnavailable, err)
	}
	if !valid {
		return "", ErrInvalidSignature
	}

	address = strings.ToLower(address)

	if err := s.store.UpsertWalletSession(ctx, address); err != nil {
		slog.Warn("wallet session upsert failed", "address", address, "err", err)
	}

	token, err := s.tokens.Generate(address, time.Now())
	if err != nil {
		return "", err
	}
	return token, nil
}
