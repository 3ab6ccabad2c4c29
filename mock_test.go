package authlink

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

// makeToken signs an access token for userID that expires after ttl.
func makeToken(t *testing.T, userID any, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"userId": userID,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

// mockGateway is a RefreshGateway that counts calls and optionally blocks
// until released.
type mockGateway struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	refresh func(ctx context.Context) (string, error)
}

func newMockGateway(refresh func(ctx context.Context) (string, error)) *mockGateway {
	return &mockGateway{
		started: make(chan struct{}, 16),
		refresh: refresh,
	}
}

// blocking makes every Refresh wait until unblock is called.
func (m *mockGateway) blocking() *mockGateway {
	m.release = make(chan struct{})
	return m
}

func (m *mockGateway) unblock() {
	close(m.release)
}

func (m *mockGateway) Refresh(ctx context.Context) (string, error) {
	m.calls.Add(1)
	m.started <- struct{}{}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.refresh(ctx)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
