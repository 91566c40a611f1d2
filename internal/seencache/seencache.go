// Package seencache implements a time-bounded digest set used to suppress
// signalling-message rebroadcast loops.
//
// It is backed by hashicorp/golang-lru/v2's expirable LRU, which gives a
// genuine per-entry TTL eviction policy instead of a hand-rolled
// sweep-on-ticker pattern (cf. internal/healthmon, which DOES need a manual
// ticker because it reconciles engine state rather than expiring entries).
package seencache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/1ureka/webrtc-star/internal/xmsg"
)

// DefaultTTL is the default entry lifetime.
const DefaultTTL = 30 * time.Second

// Cache is a concurrency-safe set of message digests with per-entry TTL.
type Cache struct {
	lru *lru.LRU[string, struct{}]
}

// New creates a Cache with the given TTL. A zero TTL uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// Capacity 0 means unbounded entry count; eviction is TTL-driven only,
	// an "eventually forgets" guarantee rather than a capacity-driven LRU
	// guarantee.
	return &Cache{lru: lru.NewLRU[string, struct{}](0, nil, ttl)}
}

// Observe computes the digest of raw, looks it up, and reports whether it
// was already present. If absent, it is inserted with the cache's TTL.
//
// Concurrent Observe calls for identical bytes may both return false (at
// most one loses the race); acceptable since the subsequent forward step is
// idempotent on the destination.
func (c *Cache) Observe(raw []byte) bool {
	digest := xmsg.Digest(raw)
	if _, ok := c.lru.Get(digest); ok {
		return true
	}
	c.lru.Add(digest, struct{}{})
	return false
}

// Len reports the current number of tracked digests (for tests/metrics).
func (c *Cache) Len() int {
	return c.lru.Len()
}
