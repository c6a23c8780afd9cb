package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultSize = 256
	defaultTTL  = 5 * time.Minute
)

// Cache is a bounded in-memory cache whose entries expire after a fixed TTL.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Remove(key K)
	Purge()
}

type ttlCache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// NewTTLCache returns a cache holding at most size entries for ttl each.
// Non-positive arguments fall back to the package defaults.
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) Cache[K, V] {
	if size <= 0 {
		size = defaultSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ttlCache[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl)}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *ttlCache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

func (c *ttlCache[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

func (c *ttlCache[K, V]) Purge() {
	c.lru.Purge()
}

// Key joins trimmed, lower-cased parts into a cache key.
func Key(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
