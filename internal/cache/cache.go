// Package cache stores raw upstream payloads so repeated requests for the
// same forecast do not hit the billed weather API again.
package cache

import (
	"context"
	"strings"
)

// Store is a byte-oriented key/value cache with per-store expiry.
type Store interface {
	// Get returns the cached payload. ok is false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Key joins parts into a namespaced cache key.
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, "|")
}
