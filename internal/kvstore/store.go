package kvstore

import "context"

// Store is the persistence capability the session subsystem is built on.
// The UI layer and the session manager agree on exact key names, so a Store
// must preserve keys and values byte for byte.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes a single key.
	Set(ctx context.Context, key, value string) error
	// SetMany writes all pairs atomically: either every key is visible or
	// none is.
	SetMany(ctx context.Context, pairs map[string]string) error
	// Delete removes the given keys atomically. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Clear removes every key.
	Clear(ctx context.Context) error
}
