package auth

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockSignatureVerifier struct {
	mock.Mock
}

func (m *MockSignatureVerifier) Verify(ctx context.Context, address, message, signature string) (bool, error) {
	args := m.Called(ctx, address, message, signature)
	return args.Bool(0), args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) UpsertWalletSession(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) Generate(address string, now time.Time) (string, error) {
	args := m.Called(address, now)
	return args.String(0), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Connect(ctx context.Context, address, message, signature string) (string, error) {
	args := m.Called(ctx, address, message, signature)
	return args.String(0), args.Error(1)
}
