// Package cache provides the TTL-keyed cache layer shared by the retriever
// and LLM gateway (spec §4.6): a uniform Cache interface backed by Redis in
// production and an in-process map for local development and tests.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL-only key/value store. There is no eviction policy beyond
// expiry: spec §4.6 calls for time-bounded freshness, not a bounded working
// set, so no LRU or size cap is implemented.
type Cache interface {
	// Get returns the stored bytes and true, or nil and false if absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL. A zero TTL means the
	// entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key if present; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying connection resources.
	Close() error
}

// Namespace prefixes keys so unrelated cache users (embedding cache,
// retrieval result cache, LLM response cache) never collide in a shared
// Redis keyspace.
func Namespace(ns, key string) string {
	return ns + ":" + key
}

// TTLs used by the cache's callers, per spec §4.6's freshness table.
const (
	EmbeddingTTL     = 24 * time.Hour
	RetrievalTTL     = 15 * time.Minute
	LLMResponseTTL   = 10 * time.Minute
	KnowledgeGraphTTL = time.Hour
)
