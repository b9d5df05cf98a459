package auth

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// defaultDedupeCapacity bounds the redemption cache so a burst of magic-link
// requests cannot grow process memory without limit.
const defaultDedupeCapacity = 1024

// redeemCache remembers recently redeemed magic-link tokens so that a repeat
// hit on the verification URL (link-preview crawlers, double navigation)
// returns the original payload instead of failing against the already-deleted
// row. The store-level atomic redemption owns correctness; this cache is a
// latency and idempotency optimization only, and is process-local.
type redeemCache struct {
	lru *lru.LRU[string, *AuthResult]
}

func newRedeemCache(capacity int, ttl time.Duration) *redeemCache {
	if capacity <= 0 {
		capacity = defaultDedupeCapacity
	}
	return &redeemCache{
		lru: lru.NewLRU[string, *AuthResult](capacity, nil, ttl),
	}
}

func (c *redeemCache) get(token string) (*AuthResult, bool) {
	if c == nil || token == "" {
		return nil, false
	}
	return c.lru.Get(token)
}

func (c *redeemCache) add(token string, result *AuthResult) {
	if c == nil || token == "" || result == nil {
		return
	}
	c.lru.Add(token, result)
}
