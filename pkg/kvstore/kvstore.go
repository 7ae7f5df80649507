// Package kvstore is the key/value storage abstraction behind CSRF tokens,
// rate-limit counters and login-failure tracking.
//
// Two implementations ship: Memory, an in-process map for single-instance
// operation, and Resilient, a remote-cache client that transparently degrades
// to an embedded Memory store whenever the remote is unreachable. Components
// depend on the Store interface only, so a deployment switches between
// single-instance and multi-instance operation purely through configuration.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports an absent (or expired) key.
var ErrNotFound = errors.New("kvstore: not found")

// NoExpiry is returned by TTL for keys stored without an expiry.
const NoExpiry = time.Duration(-1)

// Store is the storage contract. Implementations must treat an expired entry
// exactly like an absent one.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A ttl <= 0 stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all live keys matching the glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL returns the remaining lifetime of key, NoExpiry for keys without
	// one, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases background resources.
	Close() error
}
