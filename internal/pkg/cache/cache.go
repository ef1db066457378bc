package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encodable query results under string keys.
type Cache interface {
	// Get decodes the value stored under key into dst. The boolean is false
	// on a miss.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)

	// Set stores value under key for ttl. A zero ttl never expires.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
