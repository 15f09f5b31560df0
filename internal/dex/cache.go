package dex

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"volumeScope/internal/model"
)

type cacheEntry struct {
	value     interface{}
	fetchedAt time.Time
}

// ttlCache is an address-keyed LRU whose entries expire ttl after fetch.
// Expired entries are dropped lazily on read.
type ttlCache struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

func newTTLCache(size int, ttl time.Duration, now func() time.Time) (*ttlCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ttlCache{lru: cache, ttl: ttl, now: now}, nil
}

func (c *ttlCache) get(address string) (interface{}, bool) {
	key := strings.ToLower(address)
	raw, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry := raw.(cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.fetchedAt) >= c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *ttlCache) set(address string, value interface{}) {
	c.lru.Add(strings.ToLower(address), cacheEntry{value: value, fetchedAt: c.now()})
}

func (c *ttlCache) purge() {
	c.lru.Purge()
}

func (c *ttlCache) pool(address string) (model.PoolInfo, bool) {
	value, ok := c.get(address)
	if !ok {
		return model.PoolInfo{}, false
	}
	return value.(model.PoolInfo), true
}

func (c *ttlCache) token(address string) (model.TokenInfo, bool) {
	value, ok := c.get(address)
	if !ok {
		return model.TokenInfo{}, false
	}
	return value.(model.TokenInfo), true
}
