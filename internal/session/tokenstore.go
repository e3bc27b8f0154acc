package session

import (
	"context"
	"strconv"
	"time"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/api"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/kvstore"
)

// TokenStore persists the token pair under the storage keys shared with the
// UI layer. It holds no business logic; the single-writer discipline is
// enforced by the Manager.
type TokenStore struct {
	kv kvstore.Store
}

// NewTokenStore wraps the given key/value store.
func NewTokenStore(kv kvstore.Store) *TokenStore {
	return &TokenStore{kv: kv}
}

// Set writes the pair atomically. A pair without an access token fails with
// ErrInvalidToken and performs no write.
func (s *TokenStore) Set(ctx context.Context, pair TokenPair) error {
	if !pair.Valid() {
		return ErrInvalidToken
	}
	pairs := map[string]string{
		kvstore.KeyToken:        pair.AccessToken,
		kvstore.KeyRefreshToken: pair.RefreshToken,
	}
	if !pair.ExpiresAt.IsZero() {
		pairs[kvstore.KeyTokenExpiration] = strconv.FormatInt(pair.ExpiresAt.UnixMilli(), 10)
	}
	return s.kv.SetMany(ctx, pairs)
}

// Get loads the stored pair. ok is false when no access token is stored.
func (s *TokenStore) Get(ctx context.Context) (TokenPair, bool, error) {
	access, ok, err := s.kv.Get(ctx, kvstore.KeyToken)
	if err != nil || !ok || access == "" {
		return TokenPair{}, false, err
	}
	pair := TokenPair{AccessToken: access}
	if refresh, ok, err := s.kv.Get(ctx, kvstore.KeyRefreshToken); err != nil {
		return TokenPair{}, false, err
	} else if ok {
		pair.RefreshToken = refresh
	}
	if raw, ok, err := s.kv.Get(ctx, kvstore.KeyTokenExpiration); err != nil {
		return TokenPair{}, false, err
	} else if ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			pair.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return pair, true, nil
}

// Clear removes every session key atomically.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, kvstore.SessionKeys...)
}

// SetRefreshExpiry records when the refresh token itself expires, when known.
func (s *TokenStore) SetRefreshExpiry(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	return s.kv.Set(ctx, kvstore.KeyRefreshExpiration, strconv.FormatInt(t.UnixMilli(), 10))
}

// RefreshExpiry returns the stored refresh-token expiry, preferring the
// stored value and falling back to the unverified JWT hint embedded in the
// refresh token.
func (s *TokenStore) RefreshExpiry(ctx context.Context) (time.Time, bool) {
	if raw, ok, err := s.kv.Get(ctx, kvstore.KeyRefreshExpiration); err == nil && ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			return time.UnixMilli(ms), true
		}
	}
	if refresh, ok, err := s.kv.Get(ctx, kvstore.KeyRefreshToken); err == nil && ok {
		return ExpiryHint(refresh)
	}
	return time.Time{}, false
}

// TokenSourceFromStore adapts a key/value store into the bearer-token source
// the API client consumes. Defined here so wiring in main stays cycle free.
func TokenSourceFromStore(kv kvstore.Store) api.TokenSource {
	return func(ctx context.Context) (string, bool) {
		token, ok, err := kv.Get(ctx, kvstore.KeyToken)
		if err != nil || !ok || token == "" {
			return "", false
		}
		return token, true
	}
}
