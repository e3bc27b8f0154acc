package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/kvstore"
)

func TestTokenPairValidity(t *testing.T) {
	if (TokenPair{}).Valid() {
		t.Fatalf("empty pair reported valid")
	}
	if !(TokenPair{AccessToken: "a"}).Valid() {
		t.Fatalf("pair with access token reported invalid")
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pair := TokenPair{AccessToken: "a", ExpiresAt: now.Add(10 * time.Minute)}

	if pair.ExpiresWithin(now, 5*time.Minute) {
		t.Fatalf("10m remaining flagged as within 5m buffer")
	}
	if !pair.ExpiresWithin(now, 15*time.Minute) {
		t.Fatalf("10m remaining not flagged as within 15m buffer")
	}
	// Unknown expiry never triggers proactive renewal.
	if (TokenPair{AccessToken: "a"}).ExpiresWithin(now, time.Hour) {
		t.Fatalf("zero expiry flagged as expiring")
	}
}

func TestNewTokenPairPrefersResponseLifetime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pair := NewTokenPair("a", "r", 3600, now)
	if want := now.Add(time.Hour); !pair.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", pair.ExpiresAt, want)
	}
}

func TestNewTokenPairFallsBackToClaimHint(t *testing.T) {
	now := time.Now()
	exp := now.Add(42 * time.Minute).Truncate(time.Second)
	token := signedTestToken(t, exp)

	pair := NewTokenPair(token, "r", 0, now)
	if !pair.ExpiresAt.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want hint %v", pair.ExpiresAt, exp)
	}
}

func TestExpiryHint(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := ExpiryHint(signedTestToken(t, exp))
	if !ok || !got.Equal(exp) {
		t.Fatalf("ExpiryHint = %v %v, want %v true", got, ok, exp)
	}

	if _, ok := ExpiryHint("not-a-jwt"); ok {
		t.Fatalf("garbage token produced a hint")
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewTokenStore(kvstore.NewMemory())

	if err := store.Set(ctx, TokenPair{RefreshToken: "r"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Set without access token = %v, want ErrInvalidToken", err)
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	if err := store.Set(ctx, TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresAt: exp}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	pair, ok, err := store.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get = %v %v", ok, err)
	}
	if pair.AccessToken != "a" || pair.RefreshToken != "r" || !pair.ExpiresAt.Equal(exp) {
		t.Fatalf("Get returned %+v", pair)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Fatalf("pair survived Clear")
	}
}

func signedTestToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
